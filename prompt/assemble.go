package prompt

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

var (
	ErrEmptyInstructions = errors.New("prompt: base instructions are empty")
	ErrEmptyQuery        = errors.New("prompt: query is empty")
)

const truncationMark = "..."

// Assemble builds the prompt. The layout is fixed: base instructions, tenant
// rules by descending priority (ties keep input order), custom
// instructions, catalog, recent history, order facts, customer facts and
// finally the query. Identical inputs always yield identical output.
func Assemble(base string, rules []Rule, c Context) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", ErrEmptyInstructions
	}
	query := strings.TrimSpace(c.Query)
	if query == "" {
		return "", ErrEmptyQuery
	}

	var b strings.Builder
	b.WriteString(base)

	writeRules(&b, rules)

	if s := strings.TrimSpace(c.CustomInstructions); s != "" {
		section(&b, "Custom instructions")
		b.WriteString(truncate(s))
		b.WriteByte('\n')
	}

	writeCatalog(&b, c.Catalog)
	writeHistory(&b, c.History)
	writeOrders(&b, c.Orders)
	writeCustomer(&b, c.Customer)

	section(&b, "Query")
	b.WriteString(truncate(query))
	b.WriteByte('\n')

	return b.String(), nil
}

func section(b *strings.Builder, title string) {
	b.WriteString("\n\n## ")
	b.WriteString(title)
	b.WriteByte('\n')
}

func writeRules(b *strings.Builder, rules []Rule) {
	ordered := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if strings.TrimSpace(r.Text) != "" {
			ordered = append(ordered, r)
		}
	}
	if len(ordered) == 0 {
		return
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	section(b, "Business rules")
	for i, r := range ordered {
		fmt.Fprintf(b, "%d. %s\n", i+1, truncate(strings.TrimSpace(r.Text)))
	}
}

func writeCatalog(b *strings.Builder, items []CatalogItem) {
	if len(items) == 0 {
		return
	}
	if len(items) > MaxCatalogItems {
		items = items[:MaxCatalogItems]
	}

	section(b, "Catalog")
	for _, it := range items {
		b.WriteString("- ")
		b.WriteString(truncate(it.Name))
		if it.Price != "" {
			b.WriteString(" (")
			b.WriteString(truncate(it.Price))
			b.WriteByte(')')
		}
		if it.Description != "" {
			b.WriteString(": ")
			b.WriteString(truncate(it.Description))
		}
		if tags := truncateList(it.Tags); len(tags) > 0 {
			b.WriteString(" [")
			b.WriteString(strings.Join(tags, ", "))
			b.WriteByte(']')
		}
		b.WriteByte('\n')
	}
}

func writeHistory(b *strings.Builder, turns []Turn) {
	if len(turns) == 0 {
		return
	}
	if len(turns) > MaxHistoryTurns {
		turns = turns[len(turns)-MaxHistoryTurns:]
	}

	section(b, "Recent conversation")
	for _, t := range turns {
		role := t.Role
		if role == "" {
			role = "user"
		}
		fmt.Fprintf(b, "%s: %s\n", role, truncate(t.Content))
	}
}

func writeOrders(b *strings.Builder, orders []Order) {
	if len(orders) == 0 {
		return
	}
	if len(orders) > MaxArrayItems {
		orders = orders[:MaxArrayItems]
	}

	section(b, "Orders")
	for _, o := range orders {
		b.WriteString("- #")
		b.WriteString(truncate(o.ID))
		if o.Status != "" {
			b.WriteString(" status=")
			b.WriteString(truncate(o.Status))
		}
		if o.Total != "" {
			b.WriteString(" total=")
			b.WriteString(truncate(o.Total))
		}
		if items := truncateList(o.Items); len(items) > 0 {
			b.WriteString(" items=")
			b.WriteString(strings.Join(items, ", "))
		}
		b.WriteByte('\n')
	}
}

func writeCustomer(b *strings.Builder, facts map[string]string) {
	if len(facts) == 0 {
		return
	}

	keys := make([]string, 0, len(facts))
	for k := range facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	section(b, "Customer")
	for _, k := range keys {
		fmt.Fprintf(b, "- %s: %s\n", truncate(k), truncate(facts[k]))
	}
}

// truncate cuts s to MaxFieldRunes runes.
func truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxFieldRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxFieldRunes]) + truncationMark
}

// truncateList keeps the first MaxArrayItems non-empty entries, each truncated.
func truncateList(items []string) []string {
	var out []string
	for _, it := range items {
		if it == "" {
			continue
		}
		if len(out) == MaxArrayItems {
			break
		}
		out = append(out, truncate(it))
	}
	return out
}
