// Package faucet and its sub-packages implement the backend of a blockchain faucet: a service that sends a small amount
// of a network's native currency to the addresses requested by its users.
/*
Requests

Web clients request drips proving they are human with a reCAPTCHA token. Trusted bots (ie. a chat bot) request drips
on behalf of their users, identified by their username. Every identity gets at most one drip per UTC day and addresses
holding more than the network balance cap are refused. Privileged bot users are exempt from both rules. The validation
chain and the tiered submission of transfers are implemented in package dripper.

Architecture

The faucet serves a single network, selected by name at startup (package lib/network). A blockchain layer (package
lib/block) keeps one shared connection to the network node and provides balance queries and transfer submission.

Drips are recorded in a product agnostic quota store (package lib/store) backed by MongoDB, PostgreSQL or memory.
Transfers that could not be sent by the primary or the backup account are queued (package lib/queue, Redis or memory)
and sent in batches once the queue grows over its threshold.

Successful drips can be published to a message broker (package lib/msg) so other services can follow them.

The service can be monitored via a Prometheus API by setting the flag "-m" at startup.

Faucet

The faucet service (package api) can be started running cmd/faucet/main.go. It exposes an HTTP RESTful API:

	GET  /          welcome message
	GET  /network   data of the network served
	GET  /balance   balance of the faucet primary account
	POST /drip/web  {"address", "parachain_id", "recaptcha"}
	POST /drip/bot  {"address", "amount", "parachain_id", "sender"}, with "Authorization: Bearer <token>"

Web drips are always of the network drip amount. Bot drips are refused unless a bot token is configured. Drip requests are replied with {"hash"} or {"error"}.
*/
package faucet
