package prompt

import (
	"context"

	"github.com/jbweber/kiln/internal/pve"
)

type fakeInventory struct {
	storages    []pve.Storage
	storagesErr error
	snippets    []pve.Snippet
	snippetsErr error
}

func (f *fakeInventory) UsedIDs(context.Context) ([]int, error) {
	return nil, nil
}

func (f *fakeInventory) Storages(context.Context) ([]pve.Storage, error) {
	return f.storages, f.storagesErr
}

func (f *fakeInventory) Snippets(context.Context) ([]pve.Snippet, error) {
	return f.snippets, f.snippetsErr
}
