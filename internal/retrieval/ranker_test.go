package retrieval

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/service-agreement/backend/internal/contract"
	"github.com/service-agreement/backend/internal/contract/contracttest"
	"github.com/service-agreement/backend/internal/kb"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"24", "hours", "notice", "bi_weekly", "120"}, Tokenize("24-Hours NOTICE, bi_weekly ($120)"))
	assert.Empty(t, Tokenize("  --  "))
}

func TestCorpusIDF(t *testing.T) {
	c := newCorpus([][]string{{"a", "b"}, {"a"}, {"c"}})
	assert.InDelta(t, math.Log(4.0/3.0)+1, c.idf("a"), 1e-12)
	assert.InDelta(t, math.Log(4.0/2.0)+1, c.idf("b"), 1e-12)
	assert.InDelta(t, math.Log(4.0)+1, c.idf("zzz"), 1e-12)

	// query "a b x": tf(a)*idf(a) + tf(b)*idf(b), over 3 query tokens
	want := (c.idf("a") + c.idf("b")) / 3
	assert.InDelta(t, want, c.similarity([]string{"a", "b", "x"}, 0), 1e-12)
	assert.Zero(t, c.similarity(nil, 0))
}

func TestTopics(t *testing.T) {
	brief := contracttest.CleaningBrief()
	topics := Topics(brief, []string{"Insurance", ""})
	for _, want := range []string{"cancellation", "reschedule", "payment", "pricing", "recurring", "schedule", "insurance"} {
		assert.True(t, topics[want], want)
	}
	assert.False(t, topics["pets"])
	assert.False(t, topics["damage"])

	brief.HasPets = contracttest.Ptr(true)
	brief.DamageCapAmount = contracttest.Ptr(500.0)
	brief.HowOften = contracttest.Ptr(contract.FrequencyOneTime)
	topics = Topics(brief, nil)
	assert.True(t, topics["pets"])
	assert.True(t, topics["liability"])
	assert.False(t, topics["recurring"])

	assert.Empty(t, Topics(contract.Brief{}, nil))
}

func TestQueryTextFormatsNumbers(t *testing.T) {
	brief := contract.Brief{
		CancellationNoticeHours: contracttest.Ptr(24.0),
		DamageCapAmount:         contracttest.Ptr(500.0),
		DamageCapCurrency:       "USD",
	}
	text := QueryText(brief, nil)
	assert.Contains(t, text, "24 hours")
	assert.Contains(t, text, "500 USD")
}

func TestScore_EmptyKB(t *testing.T) {
	assert.Empty(t, Score(nil, contracttest.CleaningBrief(), nil, 4))
	assert.Empty(t, NewRanker(kb.NewStaticStore(nil)).Select(context.Background(), contract.Brief{}, 4, nil))
}

func TestScore_ServiceTypeDominatesEqualText(t *testing.T) {
	lawn := contract.KbItem{ID: "lawn", ServiceType: "lawn_care", Topic: "payment", Label: "Visit fee", Summary: "Pay per visit."}
	clean := lawn
	clean.ID = "clean"
	clean.ServiceType = "cleaning"

	got := Score([]contract.KbItem{lawn, clean}, contracttest.CleaningBrief(), nil, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "clean", got[0].Item.ID)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
}

func TestScore_BlankBriefSurfacesGeneric(t *testing.T) {
	items := contracttest.KbItems()
	got := Score(items, contract.Brief{}, nil, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "generic_damage_cap", got[0].Item.ID)
	assert.InDelta(t, genericBonus, got[0].Score, 1e-12)
	assert.InDelta(t, unstatedTypeBonus, got[1].Score, 1e-12)
}

func TestScore_TiesKeepLoadOrder(t *testing.T) {
	items := []contract.KbItem{
		{ID: "first", ServiceType: "generic"},
		{ID: "second", ServiceType: "generic"},
		{ID: "third", ServiceType: "generic"},
	}
	got := Score(items, contract.Brief{}, nil, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Item.ID)
	assert.Equal(t, "second", got[1].Item.ID)
}

func TestScore_DuplicateIDsLastWins(t *testing.T) {
	stale := contract.KbItem{ID: "notice", ServiceType: "generic", Label: "old wording"}
	other := contract.KbItem{ID: "cap", ServiceType: "generic", Label: "damage cap", Topic: "damage"}
	fresh := contract.KbItem{ID: "notice", ServiceType: "cleaning", Topic: "cancellation", Label: "24 hour cancellation notice"}
	brief := contracttest.CleaningBrief()

	got := Score([]contract.KbItem{stale, other, fresh}, brief, nil, 4)
	want := Score([]contract.KbItem{fresh, other}, brief, nil, 4)
	assert.Equal(t, want, got)

	ids := make(map[string]int)
	for _, s := range got {
		ids[s.Item.ID]++
	}
	assert.Equal(t, 1, ids["notice"])
	assert.Equal(t, "24 hour cancellation notice", got[0].Item.Label)
}

func TestScore_ZeroScoreExcluded(t *testing.T) {
	items := []contract.KbItem{{ID: "untyped", Label: "unrelated words"}}
	assert.Empty(t, Score(items, contracttest.CleaningBrief(), nil, 4))
}

func TestRanker_SelectsCancellationItemForCleaningBrief(t *testing.T) {
	r := NewRanker(kb.NewStaticStore(contracttest.KbItems()))
	got := r.Select(context.Background(), contracttest.CleaningBrief(), 1, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "24_hour_notice_cleaning", got[0].ID)

	all := r.Select(context.Background(), contracttest.CleaningBrief(), 0, nil)
	assert.LessOrEqual(t, len(all), DefaultLimit)
}

func TestScore_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	types := []string{"cleaning", "lawn_care", "pet_sitting", "home_services", "generic", "", "gutters"}
	topics := []string{"cancellation", "payment", "pets", "damage", "schedule", "access"}
	words := []string{"notice", "fee", "visit", "pets", "keys", "damage", "weekly", "hours", "usd", "lawn"}

	for round := 0; round < 50; round++ {
		n := rng.Intn(12)
		items := make([]contract.KbItem, n)
		for i := range items {
			items[i] = contract.KbItem{
				ID:          fmt.Sprintf("item_%d", i),
				ServiceType: types[rng.Intn(len(types))],
				Topic:       topics[rng.Intn(len(topics))],
				Label:       words[rng.Intn(len(words))] + " " + words[rng.Intn(len(words))],
				Summary:     words[rng.Intn(len(words))],
				Tags:        []string{topics[rng.Intn(len(topics))]},
			}
		}
		brief := contract.Brief{}
		if rng.Intn(2) == 0 {
			brief = contracttest.CleaningBrief()
		}
		limit := 1 + rng.Intn(5)

		got := Score(items, brief, nil, limit)
		assert.LessOrEqual(t, len(got), limit)

		ids := make(map[string]bool)
		for i, s := range got {
			assert.False(t, ids[s.Item.ID], "duplicate %s", s.Item.ID)
			ids[s.Item.ID] = true
			assert.Contains(t, items, s.Item)
			if i > 0 {
				assert.GreaterOrEqual(t, got[i-1].Score, s.Score)
			}
		}
	}
}
