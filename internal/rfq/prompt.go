package rfq

import (
	"fmt"
	"strconv"
	"strings"
)

const parseSystemPrompt = `You are an expert quoting assistant. Given the raw text of an RFQ, extract the list of requested materials and summarize it as JSON with this structure:
{
  "materials": [
    {
      "name": string,
      "grade": string (optional),
      "dimensions": {"length": number (optional), "width": number (optional), "thickness": number (optional)},
      "quantity": number (optional),
      "notes": string (optional)
    }
  ],
  "customer": string (optional),
  "dueDate": string (optional),
  "notes": string (optional)
}
Only include fields that are explicitly mentioned in the RFQ. Do not guess or infer missing information.
Your response must be valid JSON and nothing else.`

const draftSystemPrompt = `You are a quoting assistant helping match RFQs to inventory. You must return a valid JSON object with an 'items' array containing the matches.`

const draftInstructions = `You are an expert quoting assistant at a metal service center.

You will receive the customer's RFQ and the current inventory availability.

For each requested item in the RFQ, suggest the closest available item from the inventory list.
If material name, grade and dimensions all match, mark it "exact".
If only a similar item is available, for example the same material and grade in other dimensions, mark it "substitute" and explain the difference in "notes".
If nothing is close, omit the item.

=== Customer RFQ ===
%s

=== Current Inventory ===
%s

Return a JSON object with this exact structure:
{
  "items": [
    {
      "material_name": "...",
      "grade": "...",
      "dimensions": "...",
      "requested_quantity": 0,
      "available_quantity": 0,
      "match_status": "exact" | "substitute",
      "notes": "..."
    }
  ]
}
Only include items that are available in inventory.`

func draftPrompt(items []RequestedItem, stock []InventoryEntry) string {
	return fmt.Sprintf(draftInstructions, rfqContext(items), inventoryContext(stock))
}

func rfqContext(items []RequestedItem) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("- %s | Grade: %s | Dimensions: %s | Requested Quantity: %s",
			it.MaterialName, it.Grade, it.Dimensions, formatFloat(it.Quantity)))
	}
	return strings.Join(lines, "\n")
}

func inventoryContext(stock []InventoryEntry) string {
	lines := make([]string, 0, len(stock))
	for _, e := range stock {
		dims := make([]string, 0, 3)
		for _, d := range []struct {
			prefix string
			v      *float64
		}{{"L", e.Length}, {"W", e.Width}, {"T", e.Thickness}} {
			if d.v != nil && *d.v != 0 {
				dims = append(dims, d.prefix+": "+formatFloat(*d.v))
			}
		}
		lines = append(lines, fmt.Sprintf("- %s | Grade: %s | Dimensions: %s | Available: %s",
			e.MaterialName, e.GradeName, strings.Join(dims, ", "), formatFloat(e.OnHand)))
	}
	return strings.Join(lines, "\n")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
