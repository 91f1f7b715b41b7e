package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// nonTranslatable lists item keys that never carry player-facing text.
var nonTranslatable = map[string]struct{}{
	"material":          {},
	"amount":            {},
	"slot":              {},
	"slots":             {},
	"type":              {},
	"priority":          {},
	"update":            {},
	"actions":           {},
	"click_commands":    {},
	"left_click":        {},
	"right_click":       {},
	"view_requirement":  {},
	"requirements":      {},
	"conditions":        {},
	"nbt":               {},
	"nbt_string":        {},
	"nbt_int":           {},
	"enchantments":      {},
	"item_flags":        {},
	"flags":             {},
	"custom_model_data": {},
	"glow":              {},
	"hide_attributes":   {},
}

var variantKey = regexp.MustCompile(`^variant\d+$`)

// InventoryExtractor pulls titles, item names and item lore out of an
// inventory layout file. Top-level keys are inventory ids; each item under
// items.<slot> contributes name and lore, keyed by its type (or slot-<n>
// when untyped). Filler items with a blank name and template references
// whose material starts with "item:" are skipped.
type InventoryExtractor struct{}

func (InventoryExtractor) Extract(doc map[string]any) map[string]any {
	out := make(map[string]any)
	for invID, value := range doc {
		inv, ok := asMap(value)
		if !ok {
			continue
		}
		extracted := extractInventory(inv)
		if len(extracted) > 0 {
			out[invID] = extracted
		}
	}
	return out
}

func extractInventory(inv map[string]any) map[string]any {
	out := make(map[string]any)
	if title, ok := stringValue(inv["title"]); ok && title != "" {
		out["title"] = title
	}

	itemsNode, ok := asMap(inv["items"])
	if !ok {
		return out
	}
	items := make(map[string]any)
	for slot, itemValue := range itemsNode {
		item, ok := asMap(itemValue)
		if !ok {
			continue
		}
		extracted := extractItem(item)
		if len(extracted) == 0 {
			continue
		}
		items[itemPathSegment(item, slot)] = extracted
	}
	if len(items) > 0 {
		out["items"] = items
	}
	return out
}

// itemPathSegment prefers the item's type so translations survive slot
// reshuffling; untyped items fall back to slot-<n>.
func itemPathSegment(item map[string]any, slot string) string {
	if t, ok := stringValue(item["type"]); ok && t != "" {
		return t
	}
	return "slot-" + slot
}

func extractItem(item map[string]any) map[string]any {
	if isTemplateReference(item) || isFiller(item) {
		return nil
	}

	out := make(map[string]any)
	if name, ok := stringValue(item["name"]); ok && strings.TrimSpace(name) != "" {
		out["name"] = name
	}
	if lore, ok := item["lore"]; ok {
		if copied := copyLore(lore); copied != nil {
			out["lore"] = copied
		}
	}

	for key, value := range item {
		if _, skip := nonTranslatable[key]; skip {
			continue
		}
		if !variantKey.MatchString(key) {
			continue
		}
		variant, ok := asMap(value)
		if !ok {
			continue
		}
		if extracted := extractItem(variant); len(extracted) > 0 {
			out[key] = extracted
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// isTemplateReference reports whether the item points at a shared item
// definition instead of carrying its own text.
func isTemplateReference(item map[string]any) bool {
	material, ok := stringValue(item["material"])
	return ok && strings.HasPrefix(material, "item:")
}

// isFiller reports whether the item is decorative, marked by an
// explicitly blank name.
func isFiller(item map[string]any) bool {
	name, ok := stringValue(item["name"])
	return ok && strings.TrimSpace(name) == ""
}

func copyLore(value any) any {
	switch lore := value.(type) {
	case string:
		if strings.TrimSpace(lore) == "" {
			return nil
		}
		return lore
	case []any:
		if len(lore) == 0 {
			return nil
		}
		out := make([]any, len(lore))
		for i, line := range lore {
			out[i] = fmt.Sprint(line)
		}
		return out
	default:
		return nil
	}
}

func stringValue(value any) (string, bool) {
	s, ok := value.(string)
	return s, ok
}
