package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ClockObjectID is the shared clock object passed to entry functions that
// read the time.
const ClockObjectID = "0x0000000000000000000000000000000000000000000000000000000000000006"

// DefaultGasBudget is used when a Transaction leaves GasBudget unset.
const DefaultGasBudget uint64 = 10_000_000

// Transaction is a programmable transaction made of Move calls.
//
// Its canonical bytes (Bytes) are what signers sign and what the write service
// receives.
type Transaction struct {
	Sender    Address    `json:"sender"`
	GasBudget uint64     `json:"gasBudget"`
	Commands  []MoveCall `json:"commands"`
}

type MoveCall struct {
	Package       string     `json:"package"`
	Module        string     `json:"module"`
	Function      string     `json:"function"`
	TypeArguments []string   `json:"typeArguments,omitempty"`
	Arguments     []Argument `json:"arguments"`
}

// Target is "package::module::function".
func (c MoveCall) Target() string {
	return c.Package + "::" + c.Module + "::" + c.Function
}

// Argument is either an object reference or a pure JSON value.
type Argument struct {
	Object string          `json:"object,omitempty"`
	Pure   json.RawMessage `json:"pure,omitempty"`
}

func Object(id string) Argument { return Argument{Object: id} }

func PureString(s string) Argument {
	b, _ := json.Marshal(s)
	return Argument{Pure: b}
}

// PureU64 encodes n as a decimal JSON string, the u64 wire convention.
func PureU64(n uint64) Argument {
	return PureString(strconv.FormatUint(n, 10))
}

// PureOptionU64 encodes Option<u64>: null for none.
func PureOptionU64(n *uint64) Argument {
	if n == nil {
		return Argument{Pure: json.RawMessage("null")}
	}
	return PureU64(*n)
}

func PureAddress(a Address) Argument { return PureString(string(a)) }

// AsString decodes a pure string argument.
func (a Argument) AsString() (string, error) {
	if a.Pure == nil {
		return "", errors.New("ledger: argument is not pure")
	}
	var s string
	if err := json.Unmarshal(a.Pure, &s); err != nil {
		return "", fmt.Errorf("ledger: argument is not a string: %w", err)
	}
	return s, nil
}

// AsOptionU64 decodes a pure Option<u64> argument.
func (a Argument) AsOptionU64() (*uint64, error) {
	if a.Pure == nil {
		return nil, errors.New("ledger: argument is not pure")
	}
	if string(a.Pure) == "null" {
		return nil, nil
	}
	s, err := a.AsString()
	if err != nil {
		return nil, err
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("ledger: argument is not a u64: %w", err)
	}
	return &n, nil
}

// Add appends a Move call and returns its command index.
func (tx *Transaction) Add(c MoveCall) int {
	tx.Commands = append(tx.Commands, c)
	return len(tx.Commands) - 1
}

// Bytes returns the canonical encoding of tx.
func (tx *Transaction) Bytes() ([]byte, error) {
	if tx.Sender == "" {
		return nil, errors.New("ledger: transaction sender is not set")
	}
	if len(tx.Commands) == 0 {
		return nil, errors.New("ledger: transaction has no commands")
	}
	c := *tx
	if c.GasBudget == 0 {
		c.GasBudget = DefaultGasBudget
	}
	return json.Marshal(c)
}

// ParseTransaction decodes canonical transaction bytes.
func ParseTransaction(b []byte) (Transaction, error) {
	var tx Transaction
	if err := json.Unmarshal(b, &tx); err != nil {
		return Transaction{}, fmt.Errorf("ledger: decode transaction: %w", err)
	}
	if tx.Sender == "" || len(tx.Commands) == 0 {
		return Transaction{}, errors.New("ledger: transaction missing sender or commands")
	}
	return tx, nil
}
