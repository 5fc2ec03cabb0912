package classify

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/shanehull/idxscraper/internal/platform/config"
	"github.com/shanehull/idxscraper/internal/types"
)

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"":                             "",
		"  Laporan   KEPEMILIKAN  ":    "laporan kepemilikan",
		"Laporan-Kepemilikan (Saham)!": "laporan kepemilikan saham",
		"Ｌａｐｏｒａｎ":                      "laporan",
		"Perusahaan\u200bTerbuka":      "perusahaanterbuka",
		"Pemberitahuan Réksa Dana":     "pemberitahuan reksa dana",
		"5% atau lebih":                "5 atau lebih",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"abc", "abc", 100},
		{"abc", "abd", 200.0 / 3},
		{"abc", "xyz", 0},
		{"", "abc", 0},
		{"", "", 0},
	}
	for _, tt := range tests {
		if got := Ratio(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Ratio(%q,%q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestTokenSetRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"Laporan Kepemilikan Saham", "laporan kepemilikan saham", 100},
		{"saham kepemilikan laporan", "Laporan Kepemilikan Saham", 100},
		{"Laporan Kepemilikan", "Laporan Kepemilikan Saham Perusahaan Terbuka", 100},
		{"laporan laporan saham", "saham laporan", 100},
		{"", "laporan", 0},
		{"!!!", "laporan", 0},
		// sect "a", sa "a b", sb "a c": max(ratio("a","a b")=50, ratio("a b","a c")=66.7)
		{"a b", "a c", 67},
	}
	for _, tt := range tests {
		if got := TokenSetRatio(tt.a, tt.b); got != tt.want {
			t.Errorf("TokenSetRatio(%q,%q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestTokenSetRatio_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"Laporan Kepemilikan Saham", "Penyampaian Informasi Kepemilikan Efek"},
		{"Keterbukaan Informasi", "Laporan Perubahan Kepemilikan Saham Direksi"},
		{"abc def", "abd deg"},
	}
	for _, p := range pairs {
		ab, ba := TokenSetRatio(p[0], p[1]), TokenSetRatio(p[1], p[0])
		if ab != ba {
			t.Errorf("asymmetric: %d vs %d for %q", ab, ba, p)
		}
		if ab < 0 || ab > 100 {
			t.Errorf("out of range: %d", ab)
		}
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name                    string
		primary, secondary, thr int
		wantLabel               types.Label
		wantConf                int
	}{
		{"primary above", 95, 70, 80, types.LabelIDX, 95},
		{"tie at threshold favors primary", 80, 80, 80, types.LabelIDX, 80},
		{"tie above threshold favors primary", 100, 100, 80, types.LabelIDX, 100},
		{"secondary above", 70, 90, 80, types.LabelNonIDX, 90},
		{"secondary exactly at threshold", 79, 80, 80, types.LabelNonIDX, 80},
		{"both 60", 60, 60, 80, types.LabelUnknown, 60},
		{"below threshold reports max", 40, 75, 80, types.LabelUnknown, 75},
		{"primary higher but below threshold", 79, 10, 80, types.LabelUnknown, 79},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, conf := Decide(tt.primary, tt.secondary, tt.thr)
			if label != tt.wantLabel || conf != tt.wantConf {
				t.Fatalf("Decide = %s/%d, want %s/%d", label, conf, tt.wantLabel, tt.wantConf)
			}
		})
	}
}

func testClassifier() *Classifier {
	return New(config.Classifier{
		Primary:    "Laporan Kepemilikan Saham Perusahaan Terbuka",
		Alternates: []string{"Keterbukaan Informasi Pemegang Saham Tertentu"},
	})
}

func TestClassify(t *testing.T) {
	c := testClassifier()
	if c.Threshold != DefaultThreshold {
		t.Fatalf("threshold = %d, want default", c.Threshold)
	}

	got := c.Classify(types.Announcement{Title: "LAPORAN KEPEMILIKAN SAHAM PERUSAHAAN TERBUKA", Code: "BBCA"})
	if got.Label != types.LabelIDX || got.Confidence != 100 || got.SimPrimary != 100 {
		t.Fatalf("unexpected: %+v", got)
	}

	got = c.Classify(types.Announcement{Title: "Keterbukaan Informasi Pemegang Saham Tertentu"})
	if got.Label != types.LabelNonIDX || got.Confidence != 100 || got.SimSecondary != 100 {
		t.Fatalf("unexpected: %+v", got)
	}

	got = c.Classify(types.Announcement{Title: "Penyampaian Bukti Iklan"})
	if got.Label != types.LabelUnknown || got.Confidence != max(got.SimPrimary, got.SimSecondary) {
		t.Fatalf("unexpected: %+v", got)
	}
}

func TestSplit(t *testing.T) {
	items := []types.Announcement{
		{Code: "A", Title: "Laporan Kepemilikan Saham Perusahaan Terbuka"},
		{Code: "B", Title: "Penyampaian Bukti Iklan"},
		{Code: "C", Title: "Keterbukaan Informasi Pemegang Saham Tertentu"},
		{Code: "D", Title: "laporan kepemilikan saham"},
	}
	idx, non, unk := testClassifier().Split(items)

	codes := func(cs []types.Classified) []string {
		var out []string
		for _, c := range cs {
			out = append(out, c.Code)
		}
		return out
	}
	if diff := cmp.Diff([]string{"A", "D"}, codes(idx)); diff != "" {
		t.Errorf("idx (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"C"}, codes(non)); diff != "" {
		t.Errorf("non-idx (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"B"}, codes(unk)); diff != "" {
		t.Errorf("unknown (-want +got):\n%s", diff)
	}
}
