package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

// Server timeouts. Writes must outlast the tiered submission and its settle wait.
const (
	readTimeout  = 15 * time.Second
	writeTimeout = 120 * time.Second
)

// Router returns the API routes.
func (a *API) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", a.homeHandler)
	r.HandleFunc("/network", a.networkHandler).Methods("GET") // get the network served
	r.HandleFunc("/balance", a.balanceHandler).Methods("GET") // get the faucet balance
	r.HandleFunc("/drip/web", a.webDripHandler).Methods("POST")
	r.HandleFunc("/drip/bot", a.botDripHandler).Methods("POST")

	return r
}

// Init sets up and starts the http/https server to service the RESTful API. If sslPort, sslCert and sslKey are
// informed, it will start an https (TLS) server on the specified endpoint. It returns once Stop is called.
func (a *API) Init(endpoint, port, sslPort, sslCert, sslKey string) string {
	r := a.Router()
	res := make(chan string, 2)
	n := 0

	a.mu.Lock()
	// start http server
	if port != "" {
		s := &http.Server{
			Handler:      r,
			Addr:         endpoint + ":" + port,
			WriteTimeout: writeTimeout,
			ReadTimeout:  readTimeout,
		}
		a.s = s
		n++

		go func() {
			res <- "http server: " + s.ListenAndServe().Error()
		}()

		log.Infof("Listening to API http requests on %s:%s", endpoint, port)
	}
	// start https server
	if sslPort != "" && sslCert != "" && sslKey != "" {
		ss := &http.Server{
			Handler:      r,
			Addr:         endpoint + ":" + sslPort,
			WriteTimeout: writeTimeout,
			ReadTimeout:  readTimeout,
		}
		a.ss = ss
		n++

		go func() {
			res <- "https server: " + ss.ListenAndServeTLS(sslCert, sslKey).Error()
		}()

		log.Infof("Listening to API https requests on %s:%s", endpoint, sslPort)
	}
	a.mu.Unlock()

	// wait for servers to be shutdown
	<-a.sc

	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, <-res)
	}

	return "shutdown " + strings.Join(out, ", ")
}
