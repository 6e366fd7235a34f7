// Package prompt builds the instruction texts sent to the model. Builders
// are pure: the same inputs always produce the same text, missing optional
// fields render as defaults, and nothing here can fail.
package prompt

import (
	"fmt"
	"strings"

	"github.com/Jusabaoth/NutriScan/internal/gemini"
	"github.com/Jusabaoth/NutriScan/pkg/model"
)

var scanConfig = gemini.GenerationConfig{Temperature: 0.4, MaxOutputTokens: 4096}
var dayConfig = gemini.GenerationConfig{Temperature: 0.7, MaxOutputTokens: 8000}

// dayTheme nudges consecutive single-day calls toward distinct cuisines
// so the six templates do not converge on the same dishes.
type dayTheme struct {
	category     string
	proteinFocus string
}

var dayThemes = map[model.DayLabel]dayTheme{
	"A": {"masakan Nusantara klasik", "ayam"},
	"B": {"masakan rumahan sehari-hari", "ikan laut"},
	"C": {"masakan Asia (Jepang/Korea/Thailand)", "telur"},
	"D": {"masakan Western sehat", "daging sapi tanpa lemak"},
	"E": {"masakan tradisional Jawa dan Sunda", "tahu dan tempe"},
	"F": {"masakan Mediterania", "seafood"},
}

var dietPrinciples = map[model.DietGoal]string{
	model.DietKeto:          "Tinggi lemak (70-75%), protein sedang (20-25%), sangat rendah karbohidrat (5-10%). Fokus: daging, ikan, telur, sayuran rendah karbo, alpukat, kacang-kacangan.",
	model.DietAtkins:        "Fase bertahap rendah karbo. Fase 1: <20g karbo/hari, tingkatkan bertahap. Fokus: protein tinggi, lemak sehat.",
	model.DietMediterranean: "Tinggi buah, sayur, whole grains, ikan, minyak zaitun. Rendah daging merah. Fokus: makanan segar, lemak sehat.",
	model.DietPaleo:         "Makanan alami era paleolitik. Fokus: daging, ikan, telur, sayur, buah. Hindari: grains, dairy, processed food.",
	model.DietVegetarian:    "Tanpa daging atau produk hewani. Fokus: tahu, tempe, kacang-kacangan, sayuran, buah.",
	model.DietDASH:          "Untuk hipertensi. Rendah sodium (<1500mg), tinggi kalium, kalsium, magnesium. Fokus: sayur, buah, whole grains, low-fat dairy.",
	model.DietFasting:       "Pola makan berselang. Fokus: nutrisi seimbang dalam eating window, tanpa sarapan.",
	model.DietMayo:          "Diet seimbang. Fokus: sayur, buah, whole grains, lean protein, lemak sehat.",
}

// Scan builds the nutrition-label analysis prompt. It embeds the user's
// conditions and allergies, both regulatory frameworks' daily limits, the
// disease-specific overrides, and the exact output JSON shape.
func Scan(profile model.HealthProfile) (string, gemini.GenerationConfig) {
	var b strings.Builder

	b.WriteString("Anda adalah ahli nutrisi yang menganalisis label nutrisi produk makanan.\n\n")

	b.WriteString("INFORMASI PENGGUNA:\n")
	if profile.Age > 0 {
		fmt.Fprintf(&b, "- Umur: %d tahun, Gender: %s\n", profile.Age, orDefault(string(profile.Gender), "tidak disebutkan"))
		fmt.Fprintf(&b, "- Berat: %.0f kg, Tinggi: %.0f cm\n", profile.WeightKg, profile.HeightCm)
	} else {
		b.WriteString("- Profil tidak tersedia, gunakan pedoman umum dewasa\n")
	}
	fmt.Fprintf(&b, "- Kondisi Kesehatan: %s\n", joinOrNone(profile.Conditions))
	fmt.Fprintf(&b, "- Alergi: %s\n", joinOrNone(profile.Allergies))

	b.WriteString(`
TUGAS ANDA:
1. Ekstrak informasi nutrisi dari gambar label
2. Identifikasi semua bahan/ingredients
3. Analisis risiko berdasarkan kondisi kesehatan pengguna
4. Berikan rekomendasi personal yang spesifik
5. Evaluasi compliance dengan regulasi BPOM dan WHO

FORMAT OUTPUT (JSON):
{
  "productName": "nama produk",
  "nutritionFacts": {
    "servingSize": "takaran saji",
    "calories": angka,
    "totalFat": angka,
    "saturatedFat": angka,
    "transFat": angka,
    "cholesterol": angka,
    "sodium": angka,
    "totalCarbohydrate": angka,
    "dietaryFiber": angka,
    "sugars": angka,
    "protein": angka
  },
  "ingredients": ["bahan1", "bahan2"],
  "riskAssessment": {
    "level": "low/medium/high",
    "factors": ["faktor risiko"],
    "score": 0-100
  },
  "recommendations": [
    {"category": "avoid/limit/safe/beneficial", "message": "pesan singkat", "reason": "alasan detail"}
  ],
  "bpomCompliance": {"compliant": true/false, "violations": [], "warnings": []},
  "whoCompliance": {"compliant": true/false, "violations": [], "warnings": []},
  "analysisText": "penjelasan lengkap dalam bahasa Indonesia"
}

REGULASI BPOM (per hari):
- Lemak: max 67g, Lemak Jenuh: max 20g, Lemak Trans: max 2g
- Kolesterol: max 300mg, Sodium: max 2000mg
- Karbohidrat: max 300g, Gula: max 50g, Serat: min 25g, Protein: 50g

REGULASI WHO (per hari):
- Lemak: max 66g, Lemak Jenuh: max 22g (10% energi), Lemak Trans: max 2.2g
- Sodium: max 2000mg, Gula Bebas: max 50g (10% energi, ideal <5%)
- Serat: min 25g, Hindari lemak trans

PERTIMBANGAN KHUSUS BERDASARKAN PENYAKIT:
- Diabetes: batasi gula <25g/hari, tingkatkan serat >30g/hari
- Hipertensi: batasi sodium <1500mg/hari
- Jantung: batasi lemak jenuh <13g/hari, kolesterol <200mg/hari, hindari lemak trans
- Ginjal: batasi protein <40g/hari, sodium <1500mg/hari

Field "analysisText" WAJIB diisi dengan analisis yang DETAIL dan PERSONAL.
Berikan HANYA JSON tanpa teks tambahan!`)

	return b.String(), scanConfig
}

// Day builds the single-day menu prompt for one template label.
func Day(label model.DayLabel, prefs model.Preferences, targets model.NutritionTargets) (string, gemini.GenerationConfig) {
	theme, ok := dayThemes[label]
	if !ok {
		theme = dayThemes["A"]
	}
	profile := prefs.Profile

	var b strings.Builder
	b.WriteString("Anda adalah ahli nutrisi dan meal planner profesional.\n\n")

	b.WriteString("PROFIL PENGGUNA:\n")
	fmt.Fprintf(&b, "- Umur: %d tahun, Gender: %s\n", profile.Age, orDefault(string(profile.Gender), "tidak disebutkan"))
	fmt.Fprintf(&b, "- Berat: %.0f kg, Tinggi: %.0f cm, Aktivitas: %s\n", profile.WeightKg, profile.HeightCm, profile.ActivityLevel)
	fmt.Fprintf(&b, "- Kondisi Kesehatan: %s\n", joinOrNone(allConditions(prefs)))
	if prefs.OtherNotes != "" {
		fmt.Fprintf(&b, "- Catatan: %s\n", prefs.OtherNotes)
	}

	b.WriteString("\nPREFERENSI DIET:\n")
	fmt.Fprintf(&b, "- Tujuan: %s\n", prefs.DietGoal)
	if prefs.DailyBudget > 0 {
		fmt.Fprintf(&b, "- Budget: Rp %d per hari\n", prefs.DailyBudget)
	}

	if principles, ok := dietPrinciples[prefs.DietGoal]; ok {
		fmt.Fprintf(&b, "\nPRINSIP DIET %s:\n%s\n", prefs.DietGoal, principles)
	}

	fmt.Fprintf(&b, `
TARGET NUTRISI HARIAN:
- Kalori: %d kcal
- Protein: %dg
- Karbohidrat: %dg
- Lemak: %dg
`, targets.DailyCalories, targets.ProteinG, targets.CarbsG, targets.FatG)

	fmt.Fprintf(&b, "\nTUGAS:\nBuat menu untuk SATU hari (Template %s) dengan tema %s dan sumber protein utama %s.\n",
		label, theme.category, theme.proteinFocus)

	if prefs.DietGoal == model.DietFasting {
		b.WriteString("Pola Intermittent Fasting: TANPA sarapan. Makan pertama jam 12:00, makan malam 19:00, snack 15:00.\n")
	} else if hasCardiovascular(prefs) {
		b.WriteString("Kondisi jantung: bagi menjadi 5 porsi kecil (07:00, 10:00, 12:00, 15:00, 19:00), porsi lebih kecil per makan.\n")
	} else {
		b.WriteString("Waktu makan: Sarapan (07:00), Makan Siang (12:00), Snack (15:00), Makan Malam (19:00).\n")
	}

	if allergies := allAllergies(prefs); len(allergies) > 0 {
		fmt.Fprintf(&b, "DILARANG KERAS menggunakan bahan berikut (alergi): %s.\n", strings.Join(allergies, ", "))
	}

	b.WriteString(`
FORMAT OUTPUT (JSON):
{
  "meals": [
    {
      "time": "07:00",
      "type": "Sarapan",
      "name": "Nama Makanan",
      "items": [
        {"name": "nama item", "portion_grams": angka, "calories": angka, "protein": angka, "carbs": angka, "fat": angka, "ingredients": ["bahan1", "bahan2"]}
      ]
    }
  ],
  "diet_tips": ["tip 1", "tip 2"]
}

PENTING:
- Gunakan bahan lokal Indonesia yang mudah didapat
- Perhitungan nutrisi harus AKURAT
- Total nutrisi harus mendekati target ±10%
- Berikan HANYA JSON tanpa teks tambahan!`)

	return b.String(), dayConfig
}

func allConditions(prefs model.Preferences) []string {
	return mergeUnique(prefs.Profile.Conditions, prefs.Conditions)
}

func allAllergies(prefs model.Preferences) []string {
	return mergeUnique(prefs.Profile.Allergies, prefs.Allergies)
}

func hasCardiovascular(prefs model.Preferences) bool {
	for _, c := range allConditions(prefs) {
		lc := strings.ToLower(c)
		if strings.Contains(lc, "jantung") || strings.Contains(lc, "cardio") || strings.Contains(lc, "heart") {
			return true
		}
	}
	return false
}

func mergeUnique(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, v := range list {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			key := strings.ToLower(v)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func joinOrNone(list []string) string {
	if len(list) == 0 {
		return "Tidak ada"
	}
	return strings.Join(list, ", ")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
