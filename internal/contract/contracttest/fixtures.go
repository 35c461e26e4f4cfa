// Package contracttest provides fixtures shared by tests across packages.
package contracttest

import (
	"strings"

	"github.com/service-agreement/backend/internal/contract"
)

func Ptr[T any](v T) *T { return &v }

// CleaningBrief is the brief extracted from a bi-weekly house cleaning description.
func CleaningBrief() contract.Brief {
	b := contract.Brief{
		ServiceType:             Ptr(contract.ServiceCleaning),
		WhatService:             Ptr("Residential house cleaning"),
		HowOften:                Ptr(contract.FrequencyBiWeekly),
		HowChargeModel:          Ptr(contract.ChargePerVisit),
		HowChargeText:           Ptr("$120 per visit"),
		CancellationNoticeHours: Ptr(24.0),
		CancellationFeePolicy:   Ptr(contract.FeePolicyFullFee),
	}
	b.Normalize(contract.DefaultCurrency)
	return b
}

// KbItems returns a small KB with one cleaning cancellation item, one lawn item and
// one generic liability item.
func KbItems() []contract.KbItem {
	return []contract.KbItem{
		{
			ID:          "24_hour_notice_cleaning",
			ServiceType: "cleaning",
			Topic:       "cancellation",
			Label:       "24 hour cancellation notice",
			Summary:     "Cleaners commonly require 24 hours notice to cancel or reschedule a visit.",
			URL:         "https://example.org/kb/cleaning-cancellation",
			Tags:        []string{"cancellation", "reschedule"},
		},
		{
			ID:          "lawn_weather_reschedule",
			ServiceType: "lawn_care",
			Topic:       "schedule",
			Label:       "Weather rescheduling",
			Summary:     "Lawn visits missed for rain move to the next dry day.",
			URL:         "https://example.org/kb/lawn-weather",
			Tags:        []string{"schedule", "weather"},
		},
		{
			ID:          "generic_damage_cap",
			ServiceType: "home_services",
			Topic:       "liability",
			Label:       "Damage liability cap",
			Summary:     "Providers cap liability for accidental damage at a fixed amount.",
			URL:         "https://example.org/kb/damage-cap",
			Tags:        []string{"damage", "liability"},
		},
	}
}

// Document returns a valid document with every required clause in order. When refs
// are given, the first clause cites them all and each gets a footnote.
func Document(refs ...string) contract.Document {
	doc := contract.Document{
		ContractTitle: "Cleaning Services Agreement",
		Preamble:      "This agreement is made between the provider and the client.",
		GoverningNote: "Governed by the laws of the client's state.",
		Clauses:       make([]contract.Clause, 0, len(contract.RequiredClauseOrder)),
		Footnotes:     []contract.Footnote{},
		GenerationMeta: contract.GenerationMeta{
			Model:       "test-model",
			Version:     "v1",
			GeneratedAt: "2026-01-01T00:00:00Z",
		},
	}
	for _, id := range contract.RequiredClauseOrder {
		doc.Clauses = append(doc.Clauses, Clause(id))
	}
	if len(refs) > 0 {
		doc.Clauses[0].ReferenceIDs = append([]string{}, refs...)
		doc.Clauses[0].Explanation.KbIDsUsed = append([]string{}, refs...)
		for _, r := range refs {
			doc.Footnotes = append(doc.Footnotes, contract.Footnote{
				ID:      r,
				Label:   r,
				Summary: "Reference " + r,
				URL:     "https://example.org/kb/" + r,
			})
		}
	}
	return doc
}

// Clause returns a minimal valid clause with the given id and no references.
func Clause(id string) contract.Clause {
	title := strings.ReplaceAll(id, "_", " ")
	return contract.Clause{
		ClauseID: id,
		Title:    title,
		Body:     "The parties agree to the " + title + " terms.",
		Explanation: contract.Explanation{
			Summary:          "Plain summary of " + title,
			BusinessRiskNote: "Low risk.",
			KbIDsUsed:        []string{},
		},
		ReferenceIDs: []string{},
	}
}
