package prompt_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ineyio/aigate/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const base = "You are the store assistant."

func fullContext() prompt.Context {
	return prompt.Context{
		CustomInstructions: "Answer in Spanish.",
		Catalog: []prompt.CatalogItem{
			{Name: "Red shoes", Price: "$40", Description: "Leather", Tags: []string{"shoes", "red"}},
		},
		History: []prompt.Turn{
			{Role: "customer", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
		Orders: []prompt.Order{
			{ID: "1001", Status: "shipped", Total: "$40", Items: []string{"Red shoes"}},
		},
		Customer: map[string]string{"name": "Ana", "city": "Lima"},
		Query:    "Where is my order?",
	}
}

func TestAssemble_SectionOrder(t *testing.T) {
	out, err := prompt.Assemble(base, []prompt.Rule{{Text: "Be polite."}}, fullContext())
	require.NoError(t, err)

	markers := []string{
		base,
		"## Business rules",
		"## Custom instructions",
		"## Catalog",
		"## Recent conversation",
		"## Orders",
		"## Customer",
		"## Query",
	}
	last := -1
	for _, m := range markers {
		idx := strings.Index(out, m)
		require.GreaterOrEqual(t, idx, 0, "missing %q", m)
		assert.Greater(t, idx, last, "%q out of order", m)
		last = idx
	}
	assert.True(t, strings.HasSuffix(out, "Where is my order?\n"))
	assert.True(t, strings.HasPrefix(out, base))
}

func TestAssemble_RulesByPriorityStable(t *testing.T) {
	rules := []prompt.Rule{
		{Name: "a", Text: "rule A", Priority: 1},
		{Name: "b", Text: "rule B", Priority: 5},
		{Name: "c", Text: "rule C", Priority: 1},
		{Name: "d", Text: "rule D", Priority: 5},
		{Name: "blank", Text: "   ", Priority: 9},
	}

	out, err := prompt.Assemble(base, rules, prompt.Context{Query: "q"})
	require.NoError(t, err)

	assert.Contains(t, out, "1. rule B\n2. rule D\n3. rule A\n4. rule C\n")
	assert.NotContains(t, out, "5.")
	// Input slice is untouched.
	assert.Equal(t, "a", rules[0].Name)
}

func TestAssemble_Deterministic(t *testing.T) {
	rules := []prompt.Rule{{Text: "x", Priority: 2}, {Text: "y", Priority: 2}}
	c := fullContext()
	c.Customer = map[string]string{"z": "1", "a": "2", "m": "3", "b": "4"}

	first, err := prompt.Assemble(base, rules, c)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := prompt.Assemble(base, rules, c)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
	assert.Contains(t, first, "- a: 2\n- b: 4\n- m: 3\n- z: 1\n")
}

func TestAssemble_TruncatesFields(t *testing.T) {
	long := strings.Repeat("é", prompt.MaxFieldRunes+100)
	c := prompt.Context{CustomInstructions: long, Query: "q"}

	out, err := prompt.Assemble(base, nil, c)
	require.NoError(t, err)

	assert.Contains(t, out, strings.Repeat("é", prompt.MaxFieldRunes)+"...")
	assert.NotContains(t, out, strings.Repeat("é", prompt.MaxFieldRunes+1))
}

func TestAssemble_CapsArrays(t *testing.T) {
	var c prompt.Context
	for i := 0; i < 40; i++ {
		c.Catalog = append(c.Catalog, prompt.CatalogItem{Name: fmt.Sprintf("item-%02d", i)})
		c.History = append(c.History, prompt.Turn{Role: "customer", Content: fmt.Sprintf("turn-%02d", i)})
		c.Orders = append(c.Orders, prompt.Order{ID: fmt.Sprintf("o%02d", i)})
	}
	c.Orders[0].Items = []string{"i1", "i2", "i3", "i4", "i5", "i6", "i7"}
	c.Query = "q"

	out, err := prompt.Assemble(base, nil, c)
	require.NoError(t, err)

	assert.Contains(t, out, "item-14")
	assert.NotContains(t, out, "item-15")

	assert.NotContains(t, out, "turn-34")
	for i := 35; i < 40; i++ {
		assert.Contains(t, out, fmt.Sprintf("turn-%02d", i))
	}

	assert.Contains(t, out, "#o04")
	assert.NotContains(t, out, "#o05")
	assert.Contains(t, out, "items=i1, i2, i3, i4, i5\n")
}

func TestAssemble_Errors(t *testing.T) {
	_, err := prompt.Assemble("  ", nil, prompt.Context{Query: "q"})
	assert.ErrorIs(t, err, prompt.ErrEmptyInstructions)

	_, err = prompt.Assemble(base, nil, prompt.Context{Query: "\n\t"})
	assert.ErrorIs(t, err, prompt.ErrEmptyQuery)
}

func TestAssemble_OmitsEmptySections(t *testing.T) {
	out, err := prompt.Assemble(base, nil, prompt.Context{Query: "hello"})
	require.NoError(t, err)
	assert.Equal(t, base+"\n\n## Query\nhello\n", out)
}

func TestCompress(t *testing.T) {
	in := "\n\nline   one\t\twith  gaps   \n\n\n\nline two\nline two\n\nend  \n\n"
	assert.Equal(t, "line one with gaps\n\nline two\n\nend", prompt.Compress(in))
}

func TestCompress_Idempotent(t *testing.T) {
	out, err := prompt.Assemble(base, []prompt.Rule{{Text: "a  b"}}, fullContext())
	require.NoError(t, err)

	once := prompt.Compress(out)
	assert.Equal(t, once, prompt.Compress(once))
	assert.LessOrEqual(t, len(once), len(out))
}

func TestCompress_KeepsRepeatedTurns(t *testing.T) {
	c := prompt.Context{
		Catalog: []prompt.CatalogItem{{Name: "Mug"}, {Name: "Mug"}},
		History: []prompt.Turn{
			{Role: "customer", Content: "yes"},
			{Role: "customer", Content: "yes"},
		},
		Orders: []prompt.Order{{ID: "7", Status: "paid"}, {ID: "7", Status: "paid"}},
		Query:  "yes\nyes",
	}
	out, err := prompt.Assemble(base, nil, c)
	require.NoError(t, err)

	compressed := prompt.Compress(out)
	assert.Contains(t, compressed, "customer: yes\ncustomer: yes\n")
	assert.True(t, strings.HasSuffix(compressed, "## Query\nyes\nyes"))
	assert.Equal(t, 2, strings.Count(compressed, "#7"))
	assert.Equal(t, 1, strings.Count(compressed, "Mug"))
}
