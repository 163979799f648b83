package sqlgen

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	structured func(prompt string, out any) error
}

func (f *fakeGenerator) GenerateText(_ context.Context, _ string) (string, error) {
	return "", errors.New("no text handler")
}

func (f *fakeGenerator) GenerateStructured(_ context.Context, prompt string, out any, _ ...string) error {
	if f.structured == nil {
		return errors.New("no structured handler")
	}
	return f.structured(prompt, out)
}

func fill(out, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func TestValidateSQL(t *testing.T) {
	t.Run("Should prefer the service validation", func(t *testing.T) {
		gen := &fakeGenerator{structured: func(_ string, out any) error {
			return fill(out, Validation{Valid: true, Confidence: 0.9})
		}}
		v := ValidateSQL(context.Background(), gen, "SELECT id FROM customers")
		assert.True(t, v.Valid)
		assert.False(t, v.Local)
		assert.InDelta(t, 0.9, v.Confidence, 1e-9)
	})

	t.Run("Should fall back to local checks on service failure", func(t *testing.T) {
		gen := &fakeGenerator{structured: func(string, any) error { return errors.New("timeout") }}
		v := ValidateSQL(context.Background(), gen, "SELECT id FROM customers")
		assert.True(t, v.Valid)
		assert.True(t, v.Local)
	})

	t.Run("Should override a lenient service verdict on structural breakage", func(t *testing.T) {
		gen := &fakeGenerator{structured: func(_ string, out any) error {
			return fill(out, Validation{Valid: true, Confidence: 0.9})
		}}
		v := ValidateSQL(context.Background(), gen, "DROP TABLE customers")
		assert.False(t, v.Valid)
	})
}

func TestValidateLocally(t *testing.T) {
	t.Run("Should accept a plain select", func(t *testing.T) {
		v := validateLocally("SELECT id, name FROM customers WHERE region = 'west'")
		assert.True(t, v.Valid)
	})

	t.Run("Should accept a CTE", func(t *testing.T) {
		v := validateLocally("WITH recent AS (SELECT * FROM orders) SELECT count(*) FROM recent")
		assert.True(t, v.Valid)
	})

	t.Run("Should reject a missing FROM clause", func(t *testing.T) {
		v := validateLocally("SELECT 1")
		require.False(t, v.Valid)
		assert.Contains(t, v.Issues, "statement has no FROM clause")
	})

	t.Run("Should reject unbalanced parentheses", func(t *testing.T) {
		v := validateLocally("SELECT count(* FROM orders")
		assert.False(t, v.Valid)
	})

	t.Run("Should reject mutating statements", func(t *testing.T) {
		for _, sql := range []string{
			"DELETE FROM customers",
			"SELECT id FROM customers; DROP TABLE customers",
			"INSERT INTO orders SELECT * FROM staging_orders",
		} {
			v := validateLocally(sql)
			assert.False(t, v.Valid, sql)
		}
	})

	t.Run("Should reject empty statements", func(t *testing.T) {
		v := validateLocally("  ")
		assert.False(t, v.Valid)
		assert.Zero(t, v.Confidence)
	})
}
