package extract

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/worthit/ingest-service/internal/product"
)

func TestExtractAttributesAdditionalPropertyForms(t *testing.T) {
	tests := []struct {
		name       string
		additional any
		want       product.AttrMap
	}{
		{
			"name value list",
			[]any{
				map[string]any{"name": "Screen Size", "value": "16 in"},
				map[string]any{"name": "RAM", "value": float64(16)},
			},
			product.AttrMap{"screen_size": "16 in", "ram": float64(16)},
		},
		{
			"property map",
			map[string]any{"@type": "PropertyValue", "Wattage": "1200"},
			product.AttrMap{"wattage": float64(1200)},
		},
		{
			"unusable entries ignored",
			[]any{"just a string", map[string]any{"name": "", "value": nil}},
			product.AttrMap{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := docFromHTML(t, "<html><body></body></html>")
			ld := map[string]any{"additionalProperty": tt.additional}
			got := extractAttributes(ld, doc, "Widget", "", product.VerticalTech)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("extractAttributes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractAttributesSpecTable(t *testing.T) {
	doc := docFromHTML(t, `<html><body><table>
		<tr><th>Screen Size</th><td>15.6 inch</td></tr>
		<tr><th>RAM</th><td>16 GB</td></tr>
		<tr><th>Price</th><td>$2,499</td></tr>
		<tr><th>Qty</th><td>3</td></tr>
		<tr><td>only one cell</td></tr>
	</table></body></html>`)

	got := extractAttributes(nil, doc, "Widget", "", product.VerticalTech)
	want := product.AttrMap{"screen_size": "15.6 inch", "ram": "16 GB"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("extractAttributes() = %v, want %v", got, want)
	}
}

func TestExtractAttributesDefinitionList(t *testing.T) {
	doc := docFromHTML(t, `<html><body><dl>
		<dt>Colour</dt><dd>Obsidian Black</dd>
		<dt>Material</dt><dd>Aluminium</dd>
		<dt>Dangling term</dt>
	</dl></body></html>`)

	got := extractAttributes(nil, doc, "Widget", "", product.VerticalTech)
	want := product.AttrMap{"colour": "Obsidian Black", "material": "Aluminium"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("extractAttributes() = %v, want %v", got, want)
	}
}

func TestExtractAttributesJSONLDWinsOverTable(t *testing.T) {
	doc := docFromHTML(t, `<html><body><table>
		<tr><th>Model</th><td>WRONG-1</td></tr>
	</table></body></html>`)
	ld := map[string]any{"model": "AN16-41", "sku": "SKU-77"}

	got := extractAttributes(ld, doc, "Widget", "", product.VerticalTech)
	if got["model"] != "AN16-41" {
		t.Errorf("model = %v, want AN16-41", got["model"])
	}
	if got["sku"] != "SKU-77" {
		t.Errorf("sku = %v, want SKU-77", got["sku"])
	}
}

func TestExtractAttributesKeywords(t *testing.T) {
	doc := docFromHTML(t, `<html><head><meta name="keywords" content="gaming, laptop, , acer"></head><body></body></html>`)

	got := extractAttributes(nil, doc, "Widget", "", product.VerticalTech)
	want := []any{"gaming", "laptop", "acer"}
	if !reflect.DeepEqual(got["keywords"], want) {
		t.Errorf("keywords = %v, want %v", got["keywords"], want)
	}

	// JSON-LD keywords beat the meta tag.
	got = extractAttributes(map[string]any{"keywords": "tablet, stylus"}, doc, "Widget", "", product.VerticalTech)
	want = []any{"tablet", "stylus"}
	if !reflect.DeepEqual(got["keywords"], want) {
		t.Errorf("keywords = %v, want %v", got["keywords"], want)
	}
}

func TestExtractAttributesKeywordsCapped(t *testing.T) {
	var parts []string
	for i := 0; i < 24; i++ {
		parts = append(parts, fmt.Sprintf("kw%02d", i))
	}
	doc := docFromHTML(t, "<html><body></body></html>")

	got := extractAttributes(map[string]any{"keywords": strings.Join(parts, ", ")}, doc, "Widget", "", product.VerticalTech)
	keywords, ok := got["keywords"].([]any)
	if !ok || len(keywords) != maxKeywords {
		t.Errorf("keywords length = %d, want %d", len(keywords), maxKeywords)
	}
}

func TestExtractAttributesIngredients(t *testing.T) {
	doc := docFromHTML(t, "<html><body></body></html>")

	got := extractAttributes(map[string]any{"ingredients": []any{"Aqua", "Glycerin"}}, doc, "Widget", "", product.VerticalPharma)
	if got["ingredients"] != "Aqua, Glycerin" {
		t.Errorf("ingredients = %v, want Aqua, Glycerin", got["ingredients"])
	}

	scriptDoc := docFromHTML(t, `<html><body><script>var p = {"ingredients":"Aqua, Parfum"};</script></body></html>`)
	got = extractAttributes(nil, scriptDoc, "Widget", "", product.VerticalPharma)
	if got["ingredients"] != "Aqua, Parfum" {
		t.Errorf("ingredients = %v, want Aqua, Parfum", got["ingredients"])
	}
}

func TestExtractAttributesScriptModelFallback(t *testing.T) {
	doc := docFromHTML(t, `<html><body><script>window.state = {"model":"XPS-9530"};</script></body></html>`)

	got := extractAttributes(nil, doc, "Widget", "", product.VerticalTech)
	want := product.AttrMap{"model": "XPS-9530"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("extractAttributes() = %v, want %v", got, want)
	}
}

func TestExtractAttributesDescriptionMetaFallback(t *testing.T) {
	doc := docFromHTML(t, `<html><head><meta name="description" content="A thin and light laptop."></head><body></body></html>`)

	got := extractAttributes(nil, doc, "Widget", "", product.VerticalTech)
	if got["description"] != "A thin and light laptop." {
		t.Errorf("description = %v, want meta description", got["description"])
	}
}

func TestExtractAttributesDropsEmptyValues(t *testing.T) {
	doc := docFromHTML(t, "<html><body></body></html>")
	ld := map[string]any{
		"additionalProperty": []any{
			map[string]any{"name": "Colour", "value": ""},
			map[string]any{"name": "Tags", "value": []any{}},
			map[string]any{"name": "Weight", "value": "1.2 kg"},
		},
	}

	got := extractAttributes(ld, doc, "Widget", "", product.VerticalTech)
	want := product.AttrMap{"weight": "1.2 kg"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("extractAttributes() = %v, want %v", got, want)
	}
}

func TestExtractAttributesBeautyDerivation(t *testing.T) {
	doc := docFromHTML(t, "<html><body></body></html>")

	got := extractAttributes(nil, doc, "Hydrating Serum SPF 30 50ml for Dry Sensitive Skin", "Skincare", product.VerticalBeauty)
	if got["product_type"] != "serum" {
		t.Errorf("product_type = %v, want serum", got["product_type"])
	}
}

func TestNormalizeAttrKey(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Screen Size (inches)", "screen_size_inches"},
		{" RAM ", "ram"},
		{"What's in the box?", "what_s_in_the_box"},
		{"__already__snaked__", "already_snaked"},
	}
	for _, tt := range tests {
		if got := normalizeAttrKey(tt.raw); got != tt.want {
			t.Errorf("normalizeAttrKey(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
