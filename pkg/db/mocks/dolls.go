package mocks

import (
	"context"
	"errors"
	"sync"

	kdb "github.com/virtual-closet/closet/pkg/db"
)

type DollInterface struct {
	Impl struct {
		Insert     func(context.Context, kdb.DollSpec) (kdb.Doll, error)
		Get        func(context.Context, string) (kdb.Doll, error)
		UpdateFile func(context.Context, string, string, string) (kdb.Doll, error)
	}
	Calls struct {
		Insert     CallLog[kdb.DollSpec]
		Get        CallLog[string]
		UpdateFile CallLog[struct {
			Id       string
			FilePath string
			FileURL  string
		}]
	}

	mux sync.Mutex
}

func NewDollInterface() *DollInterface {
	return &DollInterface{}
}

var _ kdb.DollInterface = &DollInterface{}

func (di *DollInterface) Insert(ctx context.Context, spec kdb.DollSpec) (kdb.Doll, error) {
	di.mux.Lock()
	di.Calls.Insert = append(di.Calls.Insert, spec)
	di.mux.Unlock()
	if di.Impl.Insert != nil {
		return di.Impl.Insert(ctx, spec)
	}
	panic(errors.New("it should no be called"))
}

func (di *DollInterface) Get(ctx context.Context, id string) (kdb.Doll, error) {
	di.mux.Lock()
	di.Calls.Get = append(di.Calls.Get, id)
	di.mux.Unlock()
	if di.Impl.Get != nil {
		return di.Impl.Get(ctx, id)
	}
	panic(errors.New("it should no be called"))
}

func (di *DollInterface) UpdateFile(ctx context.Context, id string, filePath string, fileURL string) (kdb.Doll, error) {
	di.mux.Lock()
	di.Calls.UpdateFile = append(di.Calls.UpdateFile, struct {
		Id       string
		FilePath string
		FileURL  string
	}{
		Id: id, FilePath: filePath, FileURL: fileURL,
	})
	di.mux.Unlock()
	if di.Impl.UpdateFile != nil {
		return di.Impl.UpdateFile(ctx, id, filePath, fileURL)
	}
	panic(errors.New("it should no be called"))
}

type ClosetDatabase struct {
	Impl struct {
		Dolls *DollInterface
		Close func() error
	}
}

func NewClosetDatabase() *ClosetDatabase {
	db := &ClosetDatabase{}
	db.Impl.Dolls = NewDollInterface()
	return db
}

var _ kdb.ClosetDatabase = &ClosetDatabase{}

func (db *ClosetDatabase) Dolls() kdb.DollInterface {
	return db.Impl.Dolls
}

func (db *ClosetDatabase) Close() error {
	if db.Impl.Close != nil {
		return db.Impl.Close()
	}
	return nil
}
