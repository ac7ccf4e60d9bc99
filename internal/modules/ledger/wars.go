package ledger

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/rhaume/starledger/internal/domain"
)

// WarSummary is one war shaped for the history page: participants split by
// side and a log of the notable combat events.
type WarSummary struct {
	Name      string   `json:"name"`
	Start     string   `json:"start"`
	End       string   `json:"end"`
	Attackers []string `json:"attackers"`
	Defenders []string `json:"defenders"`
	Combat    []string `json:"combat"`
}

// Combats below this combined exhaustion are routine skirmishes and are
// left out of the log. Ground combat is exempt.
const notableExhaustion = 0.01

// WarSummaryBuilder assembles war summaries for one campaign database.
type WarSummaryBuilder struct {
	wars domain.WarRepository
	log  zerolog.Logger
}

// NewWarSummaryBuilder creates a new war summary builder
func NewWarSummaryBuilder(wars domain.WarRepository, log zerolog.Logger) *WarSummaryBuilder {
	return &WarSummaryBuilder{
		wars: wars,
		log:  log.With().Str("builder", "wars").Logger(),
	}
}

// Build returns every visible war ordered by start date. Unless
// ShowEverything is set, a war is hidden until the player has met at least
// one participant; the gate guards spoilers, not data completeness. Wars
// without a recorded end date are treated as ongoing through currentDate.
func (b *WarSummaryBuilder) Build(currentDate int, opts domain.PresentationOptions) ([]WarSummary, error) {
	wars, err := b.wars.AllOrdered()
	if err != nil {
		return nil, fmt.Errorf("failed to list wars: %w", err)
	}

	summaries := make([]WarSummary, 0, len(wars))
	for _, war := range wars {
		if !opts.ShowEverything && !visibleToPlayer(war) {
			continue
		}

		summary := WarSummary{
			Name:  war.Name,
			Start: domain.DaysToDate(float64(war.StartDateDays)),
			End:   domain.DaysToDate(float64(currentDate)),
		}
		if war.EndDateDays != nil && *war.EndDateDays != 0 {
			summary.End = domain.DaysToDate(float64(*war.EndDateDays))
		}

		for _, p := range war.Participants {
			if p.IsAttacker {
				summary.Attackers = append(summary.Attackers, p.CountryName)
			} else {
				summary.Defenders = append(summary.Defenders, p.CountryName)
			}
		}

		combats := make([]domain.Combat, len(war.Combats))
		copy(combats, war.Combats)
		sort.SliceStable(combats, func(i, j int) bool {
			return combats[i].Date < combats[j].Date
		})

		for _, combat := range combats {
			if combat.AttackerWarExhaustion+combat.DefenderWarExhaustion > notableExhaustion ||
				combat.CombatType == domain.CombatTypeArmies {
				summary.Combat = append(summary.Combat, combat.String())
			}
		}

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// visibleToPlayer reports whether any participant has met the player.
func visibleToPlayer(war domain.War) bool {
	for _, p := range war.Participants {
		if p.FirstPlayerContactDate != nil {
			return true
		}
	}
	return false
}
