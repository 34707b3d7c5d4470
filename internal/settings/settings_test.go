package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tokenswap/internal/account"
	"github.com/roach88/tokenswap/internal/tokens"
)

func TestDefault_IsValidAndDisabled(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())
	assert.False(t, s.AllowConversions)
	assert.False(t, s.AllowBurns)
	assert.False(t, s.AllowSeederConversions)
	assert.Equal(t, uint64(10_000), s.ScaleFactor)
	assert.Equal(t, time.Minute, s.CooldownDuration)
}

func TestValidate_Rejects(t *testing.T) {
	s := Default()
	s.ScaleFactor = 0
	assert.ErrorIs(t, s.Validate(), ErrInvalid)

	s = Default()
	s.CooldownDuration = -time.Second
	assert.ErrorIs(t, s.Validate(), ErrInvalid)

	s = Default()
	s.Admins = []account.Principal{account.Anonymous}
	assert.ErrorIs(t, s.Validate(), ErrInvalid)
}

func TestIsAdmin(t *testing.T) {
	admin := account.MustParsePrincipal("rrkah-fqaaa-aaaaa-aaaaq-cai")
	s := Default()
	s.Admins = []account.Principal{admin}

	assert.True(t, s.IsAdmin(admin))
	assert.False(t, s.IsAdmin(account.MustParsePrincipal("ryjl3-tyaaa-aaaaa-aaaba-cai")))
}

func TestJSON_RoundTrip(t *testing.T) {
	s := Default()
	s.AllowConversions = true
	s.NewFee = tokens.New(1_000)
	s.CooldownDuration = 90 * time.Second
	s.Admins = []account.Principal{account.MustParsePrincipal("rrkah-fqaaa-aaaaa-aaaaq-cai")}

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"allow_conversions": true,
		"allow_burns": false,
		"allow_seeder_conversions": false,
		"new_fee": "1000",
		"old_fee": "200000",
		"scale_factor": 10000,
		"seeder_min_amount": "100000000000",
		"cooldown": "1m30s",
		"admins": ["rrkah-fqaaa-aaaaa-aaaaq-cai"]
	}`, string(data))

	var decoded Settings
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.AllowConversions)
	assert.Equal(t, "1000", decoded.NewFee.String())
	assert.Equal(t, tokens.ScaleNew, decoded.NewFee.Scale())
	assert.Equal(t, tokens.ScaleOld, decoded.OldFee.Scale())
	assert.Equal(t, 90*time.Second, decoded.CooldownDuration)
	assert.Equal(t, s.Admins, decoded.Admins)
}

func TestParse_YAMLOverlaysDefaults(t *testing.T) {
	s, err := Parse([]byte(`
allow_conversions: true
new_fee: 1000
seeder_min_amount: "100000000000"
cooldown: 30s
admins:
  - rrkah-fqaaa-aaaaa-aaaaq-cai
`), FormatYAML)
	require.NoError(t, err)

	assert.True(t, s.AllowConversions)
	assert.False(t, s.AllowBurns)
	assert.Equal(t, "1000", s.NewFee.String())
	assert.Equal(t, "200000", s.OldFee.String(), "absent field keeps default")
	assert.Equal(t, 30*time.Second, s.CooldownDuration)
	assert.Len(t, s.Admins, 1)
}

func TestParse_CUE(t *testing.T) {
	s, err := Parse([]byte(`
allow_burns:  true
scale_factor: 10000
old_fee:      "10000"
`), FormatCUE)
	require.NoError(t, err)
	assert.True(t, s.AllowBurns)
	assert.Equal(t, "10000", s.OldFee.String())
}

func TestParse_SchemaViolations(t *testing.T) {
	cases := map[string]string{
		"unknown field":     "allow_everything: true\n",
		"negative fee":      "new_fee: -1\n",
		"zero scale factor": "scale_factor: 0\n",
		"fractional fee":    "new_fee: \"1.5\"\n",
		"bad cooldown":      "cooldown: soon\n",
		"bad admin":         "admins: [nobody]\n",
		"wrong type":        "allow_conversions: \"yes\"\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc), FormatYAML)
			assert.Error(t, err)
		})
	}
}

func TestLoad_PicksFormatByExtension(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("allow_conversions: true\n"), 0o644))
	s, err := Load(yamlPath)
	require.NoError(t, err)
	assert.True(t, s.AllowConversions)

	cuePath := filepath.Join(dir, "settings.cue")
	require.NoError(t, os.WriteFile(cuePath, []byte("allow_burns: true\n"), 0o644))
	s, err = Load(cuePath)
	require.NoError(t, err)
	assert.True(t, s.AllowBurns)

	_, err = Load(filepath.Join(dir, "settings.toml"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
