package offer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestIsValidAcceptsWellFormedOffer(t *testing.T) {
	s := Prefix + strings.Repeat("q", 20)
	require.True(t, IsValid(s))
}

func TestIsValidRejectsBadPrefix(t *testing.T) {
	require.False(t, IsValid("hello"))
	require.False(t, IsValid("splash1"+strings.Repeat("q", 20)))
}

func TestIsValidRejectsTooShort(t *testing.T) {
	// "offer1" alone is exactly the prefix; length must exceed 6, so one
	// body character is the shortest accepted offer.
	require.False(t, IsValid(Prefix))
	require.True(t, IsValid(Prefix + "q"))
}

func TestIsValidRejectsTooLong(t *testing.T) {
	body := strings.Repeat("q", MaxLength)
	require.False(t, IsValid(Prefix+body))
}

func TestIsValidRejectsNonBech32Body(t *testing.T) {
	// 'b', 'i', 'o', '1' are excluded from the bech32 data alphabet.
	require.False(t, IsValid(Prefix+"boib"+strings.Repeat("q", 16)))
}

func TestIsValidAcceptsEveryBech32Char(t *testing.T) {
	s := Prefix + Bech32Charset + Bech32Charset
	require.True(t, IsValid(s))
}

func TestDigestIsPureAndDeterministic(t *testing.T) {
	s := Prefix + strings.Repeat("q", 20)
	require.Equal(t, Compute(s), Compute(s))
}

func TestDigestDiffersForDifferentInputs(t *testing.T) {
	a := Compute(Prefix + strings.Repeat("q", 20))
	b := Compute(Prefix + strings.Repeat("p", 20))
	require.NotEqual(t, a, b)
}

func TestDigestCIDDiffersForDifferentInputs(t *testing.T) {
	a := Compute("offer1" + strings.Repeat("q", 10))
	b := Compute("offer1" + strings.Repeat("p", 10))
	ca, err := a.CID()
	require.NoError(t, err)
	cb, err := b.CID()
	require.NoError(t, err)
	require.NotEqual(t, ca.String(), cb.String())
}

// TestIsValidInvariant checks IsValid(s) iff s starts with "offer1",
// 6 < len(s) < 80_000, and every body character is in the bech32
// alphabet. Property-tested over "offer1" followed by generated
// bech32-body strings of 0 to 200 characters.
func TestIsValidInvariant(t *testing.T) {
	charset := []rune(Bech32Charset)
	runeGen := rapid.SampledFrom(charset)

	rapid.Check(t, func(t *rapid.T) {
		runes := rapid.SliceOfN(runeGen, 0, 200).Draw(t, "runes")
		s := Prefix + string(runes)

		want := len(s) > MinLength && len(s) < MaxLength
		require.Equal(t, want, IsValid(s))
	})
}

func TestDigestPurityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		require.Equal(t, Compute(s), Compute(s))
	})
}
