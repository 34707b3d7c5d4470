// Package settings holds the swap's runtime configuration.
//
// Settings are plain data: feature flags, per-asset fees, the OLD→NEW scale
// factor, the seeder threshold, the cooldown window and the admin list. They
// change only through an explicit privileged update and are read by every
// workflow.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/roach88/tokenswap/internal/account"
	"github.com/roach88/tokenswap/internal/tokens"
)

// ErrInvalid is returned for settings that no workflow can run with.
var ErrInvalid = errors.New("invalid settings")

// Settings configures the conversion and burn workflows.
type Settings struct {
	AllowConversions       bool
	AllowBurns             bool
	AllowSeederConversions bool

	// NewFee is charged by the NEW ledger per transfer (NEW scale).
	NewFee tokens.Amount

	// OldFee is charged by the OLD ledger per transfer (OLD scale).
	OldFee tokens.Amount

	// ScaleFactor divides OLD units into NEW units.
	ScaleFactor uint64

	// SeederMinAmount is the NEW-asset deposit total from which an account
	// counts as a seeder (NEW scale).
	SeederMinAmount tokens.Amount

	// CooldownDuration is the minimum spacing between two conversions (or
	// burns) for the same owner.
	CooldownDuration time.Duration

	// Admins may change settings, service identities and burn.
	Admins []account.Principal
}

// Default returns the settings a fresh deployment starts with: every
// workflow disabled.
func Default() Settings {
	return Settings{
		NewFee:           tokens.New(1_000_000),
		OldFee:           tokens.Old(200_000),
		ScaleFactor:      10_000,
		SeederMinAmount:  tokens.New(100_000_000_000),
		CooldownDuration: time.Minute,
	}
}

// Validate checks invariants the workflows rely on.
func (s Settings) Validate() error {
	if s.ScaleFactor == 0 {
		return fmt.Errorf("%w: scale_factor must be at least 1", ErrInvalid)
	}
	if s.CooldownDuration < 0 {
		return fmt.Errorf("%w: cooldown must not be negative", ErrInvalid)
	}
	if s.NewFee.Scale() != tokens.ScaleNew || s.SeederMinAmount.Scale() != tokens.ScaleNew {
		return fmt.Errorf("%w: new_fee and seeder_min_amount must be NEW amounts", ErrInvalid)
	}
	if s.OldFee.Scale() != tokens.ScaleOld {
		return fmt.Errorf("%w: old_fee must be an OLD amount", ErrInvalid)
	}
	for _, p := range s.Admins {
		if p.IsAnonymous() || p.IsPlaceholder() {
			return fmt.Errorf("%w: admin %s is not a real identity", ErrInvalid, p)
		}
	}
	return nil
}

// IsAdmin reports whether p is listed in Admins.
func (s Settings) IsAdmin(p account.Principal) bool {
	return slices.Contains(s.Admins, p)
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	s.Admins = slices.Clone(s.Admins)
	return s
}

// document is the wire and file shape of Settings.
type document struct {
	AllowConversions       bool                `json:"allow_conversions"`
	AllowBurns             bool                `json:"allow_burns"`
	AllowSeederConversions bool                `json:"allow_seeder_conversions"`
	NewFee                 tokens.Amount       `json:"new_fee"`
	OldFee                 tokens.Amount       `json:"old_fee"`
	ScaleFactor            uint64              `json:"scale_factor"`
	SeederMinAmount        tokens.Amount       `json:"seeder_min_amount"`
	Cooldown               string              `json:"cooldown"`
	Admins                 []account.Principal `json:"admins"`
}

func (s Settings) document() document {
	admins := s.Admins
	if admins == nil {
		admins = []account.Principal{}
	}
	return document{
		AllowConversions:       s.AllowConversions,
		AllowBurns:             s.AllowBurns,
		AllowSeederConversions: s.AllowSeederConversions,
		NewFee:                 s.NewFee,
		OldFee:                 s.OldFee,
		ScaleFactor:            s.ScaleFactor,
		SeederMinAmount:        s.SeederMinAmount,
		Cooldown:               s.CooldownDuration.String(),
		Admins:                 admins,
	}
}

func (d document) settings() (Settings, error) {
	cooldown, err := time.ParseDuration(d.Cooldown)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: cooldown: %v", ErrInvalid, err)
	}
	s := Settings{
		AllowConversions:       d.AllowConversions,
		AllowBurns:             d.AllowBurns,
		AllowSeederConversions: d.AllowSeederConversions,
		NewFee:                 d.NewFee.WithScale(tokens.ScaleNew),
		OldFee:                 d.OldFee.WithScale(tokens.ScaleOld),
		ScaleFactor:            d.ScaleFactor,
		SeederMinAmount:        d.SeederMinAmount.WithScale(tokens.ScaleNew),
		CooldownDuration:       cooldown,
		Admins:                 slices.Clone(d.Admins),
	}
	return s, s.Validate()
}

// MarshalJSON encodes the document shape.
func (s Settings) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.document())
}

// UnmarshalJSON overlays the fields present in data onto s.
func (s *Settings) UnmarshalJSON(data []byte) error {
	doc := s.document()
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	parsed, err := doc.settings()
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
