package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable() Table {
	return NewTable(
		NewSection("CLINICAL SUMMARY", "SUMMARY"),
		NewSection("KEY INSIGHTS", "INSIGHTS"),
		NewSection("RECOMMENDATIONS"),
		NewSection("PERSONALIZED TIPS", "TIPS"),
		NewSection("ENERGY LEVEL").WithMinLength(2),
	)
}

func TestExtractEmojiBoldHeader(t *testing.T) {
	raw := "🩺 **CLINICAL SUMMARY**\nCycle length is stable at 28 days.\n\n📋 **RECOMMENDATIONS**\n- Keep logging daily\n"
	got, ok := New(testTable()).Extract(raw, "CLINICAL SUMMARY")
	require.True(t, ok)
	assert.Equal(t, "Cycle length is stable at 28 days.", got)
}

func TestExtractRejectsBoilerplate(t *testing.T) {
	raw := "🔍 **KEY INSIGHTS**\ninsights generated\n\n💡 **PERSONALIZED TIPS**\n1. Drink water\n"
	got, ok := New(testTable()).Extract(raw, "KEY INSIGHTS")
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestExtractRejectsShortCapture(t *testing.T) {
	_, ok := New(testTable()).Extract("**SUMMARY**\nOk fine.\n", "CLINICAL SUMMARY")
	assert.False(t, ok)
}

func TestExtractPrefersEarlierMatcherStyle(t *testing.T) {
	raw := "Summary: a plain label line that is long enough\n\n✨ **SUMMARY**\nThe emoji header wins over the plain label.\n"
	got, ok := New(testTable()).Extract(raw, "CLINICAL SUMMARY")
	require.True(t, ok)
	assert.Equal(t, "The emoji header wins over the plain label.", got)
}

func TestExtractSkipsImplausibleOccurrence(t *testing.T) {
	raw := "**SUMMARY**\nN/A\n\n**SUMMARY**\nHeart rate trends look steady overall.\n"
	got, ok := New(testTable()).Extract(raw, "CLINICAL SUMMARY")
	require.True(t, ok)
	assert.Equal(t, "Heart rate trends look steady overall.", got)
}

func TestExtractHeadingStyle(t *testing.T) {
	raw := "## Clinical Summary\nYour cycle averages 29 days with low variance.\n## Tips\n- rest\n"
	got, ok := New(testTable()).Extract(raw, "CLINICAL SUMMARY")
	require.True(t, ok)
	assert.Equal(t, "Your cycle averages 29 days with low variance.", got)
}

func TestExtractHeadingWithInlineBody(t *testing.T) {
	raw := "## Clinical Summary: Cycle length is stable at 28 days.\n## Tips\n- rest\n"
	got, ok := New(testTable()).Extract(raw, "clinical summary")
	require.True(t, ok)
	assert.Equal(t, "Cycle length is stable at 28 days.", got)
}

func TestExtractPlainLabelStopsAtKnownLabel(t *testing.T) {
	raw := "Clinical Summary: Cycle is consistent across months.\nRecommendations:\n- Track symptoms\n"
	got, ok := New(testTable()).Extract(raw, "clinical_summary")
	require.True(t, ok)
	assert.Equal(t, "Cycle is consistent across months.", got)
}

func TestExtractStopsAtHorizontalRule(t *testing.T) {
	raw := "**KEY INSIGHTS**\nSleep quality improves on days with exercise.\n---\nfooter text that is not part of it\n"
	got, ok := New(testTable()).Extract(raw, "KEY INSIGHTS")
	require.True(t, ok)
	assert.Equal(t, "Sleep quality improves on days with exercise.", got)
}

func TestExtractShortFieldWithLowerThreshold(t *testing.T) {
	got, ok := New(testTable()).Extract("**ENERGY LEVEL:** Moderate\n**SUMMARY**\nx", "ENERGY LEVEL")
	require.True(t, ok)
	assert.Equal(t, "Moderate", got)
}

func TestExtractUnknownSectionUsesDefaultMatchers(t *testing.T) {
	got, ok := New(nil).Extract("**MOOD TREND**\nMood has been brighter in the mornings.\n", "MOOD TREND")
	require.True(t, ok)
	assert.Equal(t, "Mood has been brighter in the mornings.", got)
}

func TestExtractListBoundsAndOrder(t *testing.T) {
	var b strings.Builder
	b.WriteString("💡 **PERSONALIZED TIPS**\n")
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&b, "%d. Tip number %d\n", i, i)
	}
	got := New(testTable()).ExtractList(b.String(), "PERSONALIZED TIPS", 4)
	assert.Equal(t, []string{"Tip number 1", "Tip number 2", "Tip number 3", "Tip number 4"}, got)
}

func TestExtractListBulletForms(t *testing.T) {
	raw := "**TIPS**\nIntro sentence without a marker.\n- dash item\n* star item\n• dot item\n> quoted item\n2) paren item\n- **Hydrate** daily\n"
	got := New(testTable()).ExtractList(raw, "PERSONALIZED TIPS", 10)
	assert.Equal(t, []string{"dash item", "star item", "dot item", "quoted item", "paren item", "Hydrate daily"}, got)
}

func TestExtractListEmptyCases(t *testing.T) {
	e := New(testTable())
	none := e.ExtractList("**TIPS**\nJust prose here, no bullets at all.\n", "TIPS", 4)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	zero := e.ExtractList("**TIPS**\n- one\n", "TIPS", 0)
	assert.NotNil(t, zero)
	assert.Empty(t, zero)

	missing := e.ExtractList("nothing relevant", "TIPS", 3)
	assert.NotNil(t, missing)
	assert.Empty(t, missing)
}

func TestExtractAll(t *testing.T) {
	raw := "🩺 **CLINICAL SUMMARY**\nCycle length is stable at 28 days.\n\n💡 **TIPS**\n- Stay hydrated\n- Stretch daily\n"
	plan := Plan{
		Sections: []string{"CLINICAL SUMMARY", "KEY INSIGHTS"},
		Lists:    []ListSpec{{Name: "PERSONALIZED TIPS", MaxItems: 3}, {Name: "RECOMMENDATIONS", MaxItems: 3}},
	}
	res, err := New(testTable()).ExtractAll(raw, plan)
	require.NoError(t, err)

	summary, ok := res.Section("CLINICAL SUMMARY")
	assert.True(t, ok)
	assert.Equal(t, "Cycle length is stable at 28 days.", summary)
	_, ok = res.Section("KEY INSIGHTS")
	assert.False(t, ok)
	assert.Equal(t, []string{"Stay hydrated", "Stretch daily"}, res.List("PERSONALIZED TIPS"))
	assert.Empty(t, res.List("RECOMMENDATIONS"))
}

func TestExtractAllEmpty(t *testing.T) {
	res, err := New(testTable()).ExtractAll("Sorry, I cannot help with that.", Plan{Sections: []string{"CLINICAL SUMMARY"}})
	assert.ErrorIs(t, err, ErrExtractionEmpty)
	assert.True(t, res.Empty())
}

func TestPlausible(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"", false},
		{"   short   ", false},
		{"Analysis completed successfully.", false},
		{"Insights generated", false},
		{"Data not available", false},
		{"Cycle length is stable at 28 days.", true},
		{"Your summary shows irregular sleep.", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Plausible(tc.text, DefaultMinLength), tc.text)
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "clinical_summary", Key("CLINICAL SUMMARY"))
	assert.Equal(t, "clinical_summary", Key(" clinical-summary "))
	assert.Equal(t, "key_insights", Key("Key_Insights"))
}
