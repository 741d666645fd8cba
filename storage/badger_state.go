package storage

import (
	"errors"

	"github.com/MixinNetwork/rworld/common"
	"github.com/dgraph-io/badger/v4"
)

const statePrefix = "STATE"

func (s *BadgerStore) StateGet(key string, val any) (bool, error) {
	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	item, err := txn.Get(stateKey(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return true, err
	}
	ival, err := item.ValueCopy(nil)
	if err != nil {
		return true, err
	}
	return true, common.MsgpackUnmarshal(ival, val)
}

func (s *BadgerStore) StateSet(key string, val any) error {
	return s.db.Update(func(txn *badger.Txn) error {
		ival := common.MsgpackMarshalPanic(val)
		return txn.Set(stateKey(key), ival)
	})
}

func stateKey(key string) []byte {
	return append([]byte(statePrefix), key...)
}
