// Package regions holds the static wilaya table used to seed the regions
// collection and to normalise region references coming from the storefront.
package regions

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

// CapitalCode is the wilaya code of Algiers. Orders delivered there are paid
// cash on delivery.
const CapitalCode = "16"

var names = [...]string{
	"Adrar", "Chlef", "Laghouat", "Oum El Bouaghi", "Batna", "Béjaïa", "Biskra", "Béchar",
	"Blida", "Bouira", "Tamanrasset", "Tébessa", "Tlemcen", "Tiaret", "Tizi Ouzou", "Alger",
	"Djelfa", "Jijel", "Sétif", "Saïda", "Skikda", "Sidi Bel Abbès", "Annaba", "Guelma",
	"Constantine", "Médéa", "Mostaganem", "M'Sila", "Mascara", "Ouargla", "Oran", "El Bayadh",
	"Illizi", "Bordj Bou Arréridj", "Boumerdès", "El Tarf", "Tindouf", "Tissemsilt", "El Oued",
	"Khenchela", "Souk Ahras", "Tipaza", "Mila", "Aïn Defla", "Naâma", "Aïn Témouchent",
	"Ghardaïa", "Relizane", "Timimoun", "Bordj Badji Mokhtar", "Ouled Djellal", "Béni Abbès",
	"In Salah", "In Guezzam", "Touggourt", "Djanet", "El M'Ghair", "El Meniaa",
}

// All returns the seed rows, ordered by code. IDs are left empty; the store
// assigns them on first insert.
func All() []models.Region {
	out := make([]models.Region, 0, len(names))
	for i, name := range names {
		code := formatCode(i + 1)
		out = append(out, models.Region{
			Code:         code,
			Name:         name,
			IsCapital:    code == CapitalCode,
			ShippingCost: decimal.Zero,
		})
	}
	return out
}

// NormalizeCode turns "1", "01" or " 16 " into the two digit code. It returns
// false for anything that is not a known wilaya number.
func NormalizeCode(ref string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(ref))
	if err != nil || n < 1 || n > len(names) {
		return "", false
	}
	return formatCode(n), true
}

// Label is the region line used in notifications.
func Label(r models.Region) string {
	kind := "hors Alger"
	if r.IsCapital {
		kind = "Alger (capitale)"
	}
	return r.Code + " - " + r.Name + " [" + kind + "]"
}

func formatCode(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
