package account

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrincipal_KnownEncodings(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		text string
	}{
		{"placeholder", nil, "aaaaa-aa"},
		{"anonymous", []byte{0x04}, "2vxsx-fae"},
		{"canister", []byte{0, 0, 0, 0, 0, 0, 0, 2, 1, 1}, "ryjl3-tyaaa-aaaaa-aaaba-cai"},
		{"single byte", []byte{0x01}, "uuc56-gyb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PrincipalFromBytes(tt.raw)
			assert.Equal(t, tt.text, p.String())

			parsed, err := ParsePrincipal(tt.text)
			require.NoError(t, err)
			assert.Equal(t, p, parsed)
		})
	}
}

func TestParsePrincipal_Rejects(t *testing.T) {
	inputs := []string{
		"",
		"not a principal",
		"ryjl3-tyaaa-aaaaa-aaaba-caa", // checksum
		"RYJL3-TYAAA-AAAAA-AAABA-CAI", // not canonical
		"ryjl3tyaaaaaaaaaaabacai",     // missing dashes
	}
	for _, in := range inputs {
		_, err := ParsePrincipal(in)
		assert.ErrorIs(t, err, ErrInvalidPrincipal, "input %q", in)
	}
}

func TestPrincipal_Predicates(t *testing.T) {
	assert.True(t, Anonymous.IsAnonymous())
	assert.False(t, Anonymous.IsPlaceholder())
	assert.True(t, Placeholder.IsPlaceholder())
	assert.True(t, Principal{}.IsPlaceholder())
	assert.False(t, MustParsePrincipal("ryjl3-tyaaa-aaaaa-aaaba-cai").IsAnonymous())
}

func TestPrincipal_TextRoundTripInJSON(t *testing.T) {
	p := MustParsePrincipal("rrkah-fqaaa-aaaaa-aaaaq-cai")
	data, err := json.Marshal(map[string]Principal{"p": p})
	require.NoError(t, err)
	assert.JSONEq(t, `{"p":"rrkah-fqaaa-aaaaa-aaaaq-cai"}`, string(data))

	var out map[string]Principal
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, p, out["p"])
}

func TestEqual(t *testing.T) {
	owner := PrincipalFromBytes(bytes.Repeat([]byte{10}, 10))
	other := PrincipalFromBytes(bytes.Repeat([]byte{11}, 10))
	zero := make([]byte, SubaccountLen)
	one := make([]byte, SubaccountLen)
	one[31] = 1

	tests := []struct {
		name string
		a, b Account
		want bool
	}{
		{"same default", New(owner), New(owner), true},
		{"different owner", New(owner), New(other), false},
		{"absent vs zero", New(owner), Account{Owner: owner, Subaccount: zero}, true},
		{"zero vs absent", Account{Owner: owner, Subaccount: zero}, New(owner), true},
		{"zero vs zero", Account{Owner: owner, Subaccount: zero}, Account{Owner: owner, Subaccount: zero}, true},
		{"absent vs non-zero", New(owner), Account{Owner: owner, Subaccount: one}, false},
		{"non-zero vs absent", Account{Owner: owner, Subaccount: one}, New(owner), false},
		{"non-zero equal", Account{Owner: owner, Subaccount: one}, Account{Owner: owner, Subaccount: bytes.Clone(one)}, true},
		{"zero vs non-zero", Account{Owner: owner, Subaccount: zero}, Account{Owner: owner, Subaccount: one}, false},
		{"different owner same sub", Account{Owner: owner, Subaccount: one}, Account{Owner: other, Subaccount: one}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
			assert.Equal(t, tt.want, Equal(tt.b, tt.a), "Equal must be symmetric")
		})
	}
}

func TestEqual_Reflexive(t *testing.T) {
	owner := PrincipalFromBytes(bytes.Repeat([]byte{12}, 10))
	sub := bytes.Repeat([]byte{7}, SubaccountLen)
	for _, a := range []Account{New(owner), {Owner: owner, Subaccount: make([]byte, SubaccountLen)}, {Owner: owner, Subaccount: sub}} {
		assert.True(t, Equal(a, a), "account %s", a)
	}
}

func TestNormalize(t *testing.T) {
	owner := PrincipalFromBytes(bytes.Repeat([]byte{13}, 10))
	sub := bytes.Repeat([]byte{7}, SubaccountLen)

	zero := Account{Owner: owner, Subaccount: make([]byte, SubaccountLen)}
	assert.Nil(t, Normalize(zero).Subaccount)
	assert.Equal(t, New(owner).String(), Normalize(zero).String())

	other := Account{Owner: owner, Subaccount: sub}
	assert.Equal(t, other, Normalize(other))
	assert.NotEqual(t, Normalize(New(owner)).String(), Normalize(other).String())
}

func TestValidate(t *testing.T) {
	owner := PrincipalFromBytes(bytes.Repeat([]byte{10}, 10))

	assert.NoError(t, Validate(New(owner)))
	assert.NoError(t, Validate(Account{Owner: owner, Subaccount: make([]byte, SubaccountLen)}))
	assert.NoError(t, Validate(New(PrincipalFromBytes(bytes.Repeat([]byte{1}, MaxPrincipalLen)))))

	invalid := map[string]Account{
		"anonymous":       New(Anonymous),
		"owner too long":  New(PrincipalFromBytes(bytes.Repeat([]byte{1}, MaxPrincipalLen+1))),
		"short sub":       {Owner: owner, Subaccount: make([]byte, 31)},
		"long sub":        {Owner: owner, Subaccount: make([]byte, 33)},
		"empty non-nil":   {Owner: owner, Subaccount: []byte{}},
	}
	for name, a := range invalid {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, Validate(a), ErrInvalidAccount)
		})
	}
}

func TestAccount_JSON(t *testing.T) {
	owner := MustParsePrincipal("rrkah-fqaaa-aaaaa-aaaaq-cai")
	sub := make([]byte, SubaccountLen)
	sub[31] = 0xff

	data, err := json.Marshal(Account{Owner: owner, Subaccount: sub})
	require.NoError(t, err)
	assert.JSONEq(t, `{"owner":"rrkah-fqaaa-aaaaa-aaaaq-cai","subaccount":"00000000000000000000000000000000000000000000000000000000000000ff"}`, string(data))

	var decoded Account
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, Equal(Account{Owner: owner, Subaccount: sub}, decoded))

	data, err = json.Marshal(New(owner))
	require.NoError(t, err)
	assert.JSONEq(t, `{"owner":"rrkah-fqaaa-aaaaa-aaaaq-cai"}`, string(data))
}
