// Package memory implements the retry queue in process memory. Entries are lost when the process stops.
package memory

import (
	"context"
	"math/rand"

	mapset "github.com/deckarep/golang-set/v2"
)

type Memory struct {
	s mapset.Set[string]
}

func New() *Memory {
	return &Memory{s: mapset.NewSet[string]()}
}

func (m *Memory) Add(_ context.Context, addr string) error {
	m.s.Add(addr)

	return nil
}

func (m *Memory) Remove(_ context.Context, addrs ...string) error {
	m.s.RemoveAll(addrs...)

	return nil
}

func (m *Memory) Card(context.Context) (int64, error) {
	return int64(m.s.Cardinality()), nil
}

func (m *Memory) Sample(_ context.Context, n int64) ([]string, error) {
	all := m.s.ToSlice()
	rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })

	if int64(len(all)) > n {
		all = all[:n]
	}

	return all, nil
}

func (m *Memory) Close() error {
	m.s.Clear()

	return nil
}
