package account

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// SubaccountLen is the required length of a present subaccount.
const SubaccountLen = 32

// ErrInvalidAccount is returned by Validate.
var ErrInvalidAccount = errors.New("invalid account")

var zeroSubaccount = make([]byte, SubaccountLen)

// Account identifies a holder on either ledger.
type Account struct {
	Owner Principal

	// Subaccount is nil when absent.
	Subaccount []byte
}

// New returns the default account of owner.
func New(owner Principal) Account {
	return Account{Owner: owner}
}

// Equal reports whether a and b denote the same ledger account.
//
// An absent subaccount equals the 32-byte all-zero subaccount, for either operand.
func Equal(a, b Account) bool {
	if a.Owner != b.Owner {
		return false
	}
	switch {
	case a.Subaccount == nil && b.Subaccount == nil:
		return true
	case a.Subaccount == nil:
		return bytes.Equal(b.Subaccount, zeroSubaccount)
	case b.Subaccount == nil:
		return bytes.Equal(a.Subaccount, zeroSubaccount)
	default:
		return bytes.Equal(a.Subaccount, b.Subaccount)
	}
}

// Normalize returns a with an all-zero subaccount replaced by absent, so
// accounts that are Equal also have the same String form.
func Normalize(a Account) Account {
	if a.Subaccount != nil && bytes.Equal(a.Subaccount, zeroSubaccount) {
		return Account{Owner: a.Owner}
	}
	return a
}

// Validate rejects accounts the ledgers would never hold funds for.
func Validate(a Account) error {
	if a.Owner.IsAnonymous() {
		return fmt.Errorf("%w: anonymous owner", ErrInvalidAccount)
	}
	if a.Owner.Len() > MaxPrincipalLen {
		return fmt.Errorf("%w: owner is %d bytes, max %d", ErrInvalidAccount, a.Owner.Len(), MaxPrincipalLen)
	}
	if a.Subaccount != nil && len(a.Subaccount) != SubaccountLen {
		return fmt.Errorf("%w: subaccount is %d bytes, want %d", ErrInvalidAccount, len(a.Subaccount), SubaccountLen)
	}
	return nil
}

// ParseSubaccount decodes a hex subaccount. The empty string means absent.
func ParseSubaccount(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: subaccount is not hex: %v", ErrInvalidAccount, err)
	}
	return b, nil
}

// String formats the account as owner or owner.subaccount-hex.
func (a Account) String() string {
	if a.Subaccount == nil {
		return a.Owner.String()
	}
	return a.Owner.String() + "." + hex.EncodeToString(a.Subaccount)
}

type accountJSON struct {
	Owner      Principal `json:"owner" yaml:"owner"`
	Subaccount string    `json:"subaccount,omitempty" yaml:"subaccount,omitempty"`
}

// MarshalJSON encodes the subaccount as hex.
func (a Account) MarshalJSON() ([]byte, error) {
	out := accountJSON{Owner: a.Owner}
	if a.Subaccount != nil {
		out.Subaccount = hex.EncodeToString(a.Subaccount)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form produced by MarshalJSON.
func (a *Account) UnmarshalJSON(data []byte) error {
	var in accountJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	sub, err := ParseSubaccount(in.Subaccount)
	if err != nil {
		return err
	}
	*a = Account{Owner: in.Owner, Subaccount: sub}
	return nil
}

// UnmarshalYAML decodes the same shape as UnmarshalJSON.
func (a *Account) UnmarshalYAML(unmarshal func(any) error) error {
	var in accountJSON
	if err := unmarshal(&in); err != nil {
		return err
	}
	sub, err := ParseSubaccount(in.Subaccount)
	if err != nil {
		return err
	}
	*a = Account{Owner: in.Owner, Subaccount: sub}
	return nil
}
