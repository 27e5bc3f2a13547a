package overrides

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestMerge(t *testing.T) {
	t.Run("latest contributor wins for scalar keys", func(t *testing.T) {
		values := Merge([]string{"base", "tweak", "overhaul"}, map[string]Contribution{
			"base":     {Overrides: map[string]cty.Value{"difficulty": cty.StringVal("easy"), "title": cty.StringVal("Base")}},
			"tweak":    {Overrides: map[string]cty.Value{"difficulty": cty.StringVal("normal")}},
			"overhaul": {Overrides: map[string]cty.Value{"difficulty": cty.StringVal("hard")}},
		})

		got, ok := values.Get("difficulty")
		require.True(t, ok)
		assert.Equal(t, cty.StringVal("hard"), got)

		got, ok = values.Get("title")
		require.True(t, ok)
		assert.Equal(t, cty.StringVal("Base"), got)
	})

	t.Run("append keys concatenate in load order", func(t *testing.T) {
		values := Merge([]string{"base", "extra"}, map[string]Contribution{
			"base": {Appends: map[string]cty.Value{
				"spawns": cty.TupleVal([]cty.Value{cty.StringVal("wolf"), cty.StringVal("bear")}),
			}},
			"extra": {Appends: map[string]cty.Value{
				"spawns": cty.TupleVal([]cty.Value{cty.StringVal("drake")}),
			}},
		})

		got, ok := values.Get("spawns")
		require.True(t, ok)
		assert.Equal(t, cty.TupleVal([]cty.Value{
			cty.StringVal("wolf"), cty.StringVal("bear"), cty.StringVal("drake"),
		}), got)
	})

	t.Run("scalar append contributions become single elements", func(t *testing.T) {
		values := Merge([]string{"a", "b"}, map[string]Contribution{
			"a": {Appends: map[string]cty.Value{"tags": cty.StringVal("solo")}},
			"b": {Appends: map[string]cty.Value{"tags": cty.TupleVal([]cty.Value{cty.StringVal("duo")})}},
		})

		got, ok := values.Get("tags")
		require.True(t, ok)
		assert.Equal(t, cty.TupleVal([]cty.Value{cty.StringVal("solo"), cty.StringVal("duo")}), got)
	})

	t.Run("contributions outside the load order are ignored", func(t *testing.T) {
		values := Merge([]string{"present"}, map[string]Contribution{
			"present": {Overrides: map[string]cty.Value{"k": cty.NumberIntVal(1)}},
			"failed":  {Overrides: map[string]cty.Value{"k": cty.NumberIntVal(2)}},
		})

		got, ok := values.Get("k")
		require.True(t, ok)
		assert.Equal(t, cty.NumberIntVal(1), got)
		assert.Equal(t, 1, values.Len())
	})

	t.Run("empty input merges to nothing", func(t *testing.T) {
		values := Merge(nil, nil)
		assert.Zero(t, values.Len())
		assert.Empty(t, values.Keys())
		_, ok := values.Get("anything")
		assert.False(t, ok)
	})

	t.Run("keys are deterministic", func(t *testing.T) {
		values := Merge([]string{"m"}, map[string]Contribution{
			"m": {Overrides: map[string]cty.Value{
				"zeta": cty.True, "alpha": cty.True, "mid": cty.True,
			}},
		})
		assert.Equal(t, []string{"alpha", "mid", "zeta"}, values.Keys())
	})
}
