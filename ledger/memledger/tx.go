package memledger

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"onigiri.dev/shake/ledger"
)

type stagedObject struct {
	obj     Object
	created bool
	deleted bool
	order   int
}

// Tx is the staged state of one executing transaction. Nothing a Handler does
// through Tx is visible to readers until every command has succeeded.
type Tx struct {
	l      *Ledger
	sender ledger.Address
	digest string
	now    time.Time
	staged map[string]*stagedObject
	n      int
}

func (tx *Tx) Sender() ledger.Address { return tx.sender }

// Now is the transaction's timestamp, as read from the clock object.
func (tx *Tx) Now() time.Time { return tx.now }

// Get returns the current (staged) version of an object.
func (tx *Tx) Get(id string) (Object, error) {
	norm, err := ledger.NormalizeID(id)
	if err != nil {
		return Object{}, err
	}
	if s, ok := tx.staged[norm]; ok {
		if s.deleted {
			return Object{}, fmt.Errorf("%w %s (deleted)", ErrUnknownObject, norm)
		}
		return s.obj, nil
	}
	obj, ok := tx.l.objects[norm]
	if !ok {
		return Object{}, fmt.Errorf("%w %s", ErrUnknownObject, norm)
	}
	return obj, nil
}

// Input returns an object the sender may use as a transaction input: owned by
// the sender, shared or immutable.
func (tx *Tx) Input(id string) (Object, error) {
	obj, err := tx.Get(id)
	if err != nil {
		return Object{}, err
	}
	switch obj.Owner.Kind {
	case ledger.OwnerShared, ledger.OwnerImmutable:
		return obj, nil
	case ledger.OwnerAddress:
		if obj.Owner.Addr == tx.sender {
			return obj, nil
		}
	}
	return Object{}, fmt.Errorf("object %s is not owned by %s", obj.ID, tx.sender)
}

// Create stages a new object and returns its id. The "id" field is set to the
// new object's UID.
func (tx *Tx) Create(typ string, owner ledger.Owner, fields map[string]any) string {
	tx.n++
	id := tx.l.freshID(tx.digest + ":" + strconv.Itoa(tx.n))
	if fields == nil {
		fields = map[string]any{}
	}
	fields["id"] = UID(id)
	tx.staged[id] = &stagedObject{
		obj:     Object{ID: id, Type: typ, Owner: owner, Fields: fields},
		created: true,
		order:   tx.n,
	}
	return id
}

// Update replaces an object's fields, keeping its id.
func (tx *Tx) Update(id string, fields map[string]any) error {
	obj, err := tx.Get(id)
	if err != nil {
		return err
	}
	fields["id"] = UID(obj.ID)
	obj.Fields = fields
	tx.stage(obj, false)
	return nil
}

func (tx *Tx) Delete(id string) error {
	obj, err := tx.Get(id)
	if err != nil {
		return err
	}
	tx.stage(obj, true)
	return nil
}

func (tx *Tx) stage(obj Object, deleted bool) {
	if s, ok := tx.staged[obj.ID]; ok {
		s.obj = obj
		s.deleted = deleted
		return
	}
	tx.n++
	tx.staged[obj.ID] = &stagedObject{obj: obj, deleted: deleted, order: tx.n}
}

// commit applies staged changes under the ledger lock and returns them in
// staging order.
func (tx *Tx) commit() []ledger.ObjectChange {
	l := tx.l
	l.version++
	version := l.version

	ordered := make([]*stagedObject, 0, len(tx.staged))
	for _, s := range tx.staged {
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].order < ordered[j].order })

	changes := make([]ledger.ObjectChange, 0, len(ordered))
	for _, s := range ordered {
		obj := s.obj
		obj.Version = version
		change := ledger.ObjectChange{
			Sender:     tx.sender,
			ObjectID:   obj.ID,
			ObjectType: obj.Type,
			Version:    strconv.FormatUint(version, 10),
		}
		switch {
		case s.deleted && s.created:
			continue
		case s.deleted:
			change.Type = ledger.ChangeDeleted
			delete(l.objects, obj.ID)
			l.deleted[obj.ID] = version
		default:
			if s.created {
				change.Type = ledger.ChangeCreated
				l.seq++
				obj.seq = l.seq
			} else {
				change.Type = ledger.ChangeMutated
			}
			l.objects[obj.ID] = obj
			resp := obj.Response()
			change.Owner = resp.Data.Owner
			change.Digest = resp.Data.Digest
		}
		changes = append(changes, change)
	}
	return changes
}
