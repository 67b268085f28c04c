package canonical

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalSortsKeysAndStripsWhitespace(t *testing.T) {
	in := json.RawMessage(`{ "b": 1, "a": {"z": true, "y": [3, 2, 1]}, "c": "x<y" }`)
	got, err := Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"y":[3,2,1],"z":true},"b":1,"c":"x<y"}`, string(got))
}

func TestHashIgnoresKeyOrder(t *testing.T) {
	h1, err := Hash(map[string]any{"supplier": "ACME", "country": "DE", "tier": 1})
	require.NoError(t, err)
	h2, err := Hash(json.RawMessage(`{"tier":1,"country":"DE","supplier":"ACME"}`))
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestHashChangesOnAnySingleFieldChange(t *testing.T) {
	base := map[string]any{"supplier": "ACME", "country": "DE", "tier": 1, "active": true}
	baseHash, err := Hash(base)
	require.NoError(t, err)

	variants := []map[string]any{
		{"supplier": "ACME GmbH", "country": "DE", "tier": 1, "active": true},
		{"supplier": "ACME", "country": "FR", "tier": 1, "active": true},
		{"supplier": "ACME", "country": "DE", "tier": 2, "active": true},
		{"supplier": "ACME", "country": "DE", "tier": 1, "active": false},
		{"supplier": "ACME", "country": "DE", "tier": 1},
	}
	for _, v := range variants {
		h, err := Hash(v)
		require.NoError(t, err)
		assert.NotEqual(t, baseHash, h, "variant %v", v)
	}
}

func TestNumbersNormalize(t *testing.T) {
	cases := map[string]string{
		`1.50`:        `1.5`,
		`1.5`:         `1.5`,
		`-0`:          `0`,
		`-0.000`:      `0`,
		`100`:         `100`,
		`1e2`:         `100`,
		`1E+2`:        `100`,
		`0.1`:         `0.1`,
		`0.00000012`:  `0.00000012`,
		`1.5e-8`:      `1.5e-8`,
		`12e20`:       `1.2e+21`,
		`-3.14159000`: `-3.14159`,
	}
	for in, want := range cases {
		got, err := Marshal(json.RawMessage(`{"v":` + in + `}`))
		require.NoError(t, err, in)
		assert.Equal(t, `{"v":`+want+`}`, string(got), in)
	}
}

func TestNumbersKeepEveryDigit(t *testing.T) {
	pairs := [][2]string{
		{`12345678901234567890`, `12345678901234567891`},
		{`0.10000000000000000001`, `0.1`},
		{`9007199254740993`, `9007199254740992`},
		{`-98765432109876543210.5`, `-98765432109876543210.50001`},
	}
	for _, p := range pairs {
		a, err := Hash(json.RawMessage(`{"qty":` + p[0] + `}`))
		require.NoError(t, err)
		b, err := Hash(json.RawMessage(`{"qty":` + p[1] + `}`))
		require.NoError(t, err)
		assert.NotEqual(t, a, b, "%s vs %s", p[0], p[1])
	}

	got, err := Marshal(json.RawMessage(`{"qty":12345678901234567890}`))
	require.NoError(t, err)
	assert.Equal(t, `{"qty":12345678901234567890}`, string(got))
}

func TestHashingReaderHashesFullStream(t *testing.T) {
	content := strings.Repeat("evidence-bytes-", 10000)
	hr := NewHashingReader(strings.NewReader(content))
	buf := make([]byte, 4096)
	for {
		_, err := hr.Read(buf)
		if err != nil {
			break
		}
	}
	assert.Equal(t, HashBytes([]byte(content)), hr.Sum())
	assert.Equal(t, int64(len(content)), hr.Size())
}
