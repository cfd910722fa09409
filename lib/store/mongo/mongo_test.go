//go:build integration
// +build integration

package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/tarancss/faucet/lib/store"
)

var uri string = "mongodb://localhost:27017"

// TestDrips requires an available MongoDB server at localhost:27017.
func TestDrips(t *testing.T) {
	m, err := New(uri)
	if err != nil {
		t.Fatalf("err:%e", err)
	}
	defer m.CloseMongo()

	ctx := context.Background()
	// start clean, today included
	if _, err = m.PurgeDrips(ctx, store.Day(time.Now().Add(24*time.Hour))); err != nil {
		t.Errorf("PurgeDrips err:%e", err)
	}

	k := store.DripKey{Addr: "0x357dd3856d856197c1a000bbAb4aBCB97Dfc92c4", Username: "@alice:matrix.org"}

	if dripped, err := m.HasDrippedToday(ctx, k); err != nil || dripped {
		t.Errorf("HasDrippedToday before save dripped:%v err:%e", dripped, err)
	}

	if err = m.SaveDrip(ctx, k); err != nil {
		t.Errorf("SaveDrip err:%e", err)
	}

	// the username alone is enough to hit the quota
	other := store.DripKey{Addr: "0xcba75F167B03e34B8a572c50273C082401b073Ed", Username: k.Username}
	if dripped, err := m.HasDrippedToday(ctx, other); err != nil || !dripped {
		t.Errorf("HasDrippedToday after save dripped:%v err:%e", dripped, err)
	}

	if dripped, err := m.HasDrippedToday(ctx, store.DripKey{Addr: other.Addr}); err != nil || dripped {
		t.Errorf("HasDrippedToday other address dripped:%v err:%e", dripped, err)
	}
}
