package storage

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/MixinNetwork/rworld/common"
	"github.com/dgraph-io/badger/v4"
)

const (
	eventPrefix      = "EVENT"
	eventSequenceKey = "SEQUENCEEVENT"

	eventsListLimit = 500
)

// WriteEvent appends e to the journal and assigns its sequence, starting at 1.
func (s *BadgerStore) WriteEvent(e *Event) (uint64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixNano()
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		seq, err := readEventsSequence(txn)
		if err != nil {
			return err
		}
		e.Sequence = seq + 1
		err = txn.Set(eventKey(e.Sequence), common.MsgpackMarshalPanic(e))
		if err != nil {
			return err
		}
		return txn.Set([]byte(eventSequenceKey), binary.BigEndian.AppendUint64(nil, e.Sequence))
	})
	if err != nil {
		return 0, err
	}
	return e.Sequence, nil
}

// ReadEvents returns at most count events with sequence >= offset.
func (s *BadgerStore) ReadEvents(offset, count uint64) ([]*Event, error) {
	if count == 0 || count > eventsListLimit {
		count = eventsListLimit
	}
	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	events := make([]*Event, 0)
	prefix := []byte(eventPrefix)
	for it.Seek(eventKey(offset)); it.ValidForPrefix(prefix) && uint64(len(events)) < count; it.Next() {
		v, err := it.Item().ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		var e Event
		err = common.MsgpackUnmarshal(v, &e)
		if err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, nil
}

func (s *BadgerStore) EventsSequence() uint64 {
	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	seq, err := readEventsSequence(txn)
	if err != nil {
		panic(err)
	}
	return seq
}

func readEventsSequence(txn *badger.Txn) (uint64, error) {
	item, err := txn.Get([]byte(eventSequenceKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(val), nil
}

func eventKey(seq uint64) []byte {
	return binary.BigEndian.AppendUint64([]byte(eventPrefix), seq)
}
