package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Desk Lamp", "desk-lamp"},
		{"upper case", "LED STRIP", "led-strip"},
		{"turkish dotless i", "Kadın Giyim", "kadin-giyim"},
		{"turkish cedilla", "Çocuk Ürünleri", "cocuk-urunleri"},
		{"turkish dotted capital", "İstanbul Çay Seti", "istanbul-cay-seti"},
		{"german sharp s", "Straße & Café", "strasse-cafe"},
		{"french accents", "Crème Brûlée Torch", "creme-brulee-torch"},
		{"danish o", "Smørrebrød Board", "smorrebrod-board"},
		{"polish l", "Łódź Mug", "lodz-mug"},
		{"punctuation runs", "Chair!!! (Oak)???", "chair-oak"},
		{"price text", "Gift card: $100", "gift-card-100"},
		{"surrounding space", "  Wall Clock\t", "wall-clock"},
		{"hyphen runs", "a - - b", "a-b"},
		{"edge hyphens", "-sofa-", "sofa"},
		{"digits only", "2024", "2024"},
		{"empty", "", ""},
		{"symbols only", "!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Generate(tt.in))
		})
	}
}

func TestWithID(t *testing.T) {
	assert.Equal(t, "42-desk-lamp", WithID(42, "Desk Lamp"))
	assert.Equal(t, "8-kadin-giyim", WithID(8, "Kadın Giyim"))
	assert.Equal(t, "7", WithID(7, "!!!"))
}
