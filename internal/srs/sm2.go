package srs

import (
	"math"
	"time"

	"github.com/vytor/drillbot/internal/models"
)

// Policy holds the tunable coefficients of the SM-2 variant.
type Policy struct {
	MinEase             float64
	MaxHintPenalty      int
	MaxIntervalDays     int // 0 disables the cap
	MasteryRepetitions  int
	MasteryIntervalDays int
}

// DefaultPolicy returns the classic SM-2 floor with the default mastery thresholds.
func DefaultPolicy() Policy {
	return Policy{
		MinEase:             1.3,
		MaxHintPenalty:      2,
		MaxIntervalDays:     365,
		MasteryRepetitions:  5,
		MasteryIntervalDays: 21,
	}
}

// Quality maps a drill outcome to an SM-2 quality score in 0..5.
// Correct answers score 5 minus the hint penalty, incorrect ones 2 minus it.
func (p Policy) Quality(isCorrect bool, hintsUsed int) int {
	penalty := hintsUsed
	if penalty < 0 {
		penalty = 0
	}
	if penalty > p.MaxHintPenalty {
		penalty = p.MaxHintPenalty
	}
	if isCorrect {
		return 5 - penalty
	}
	q := 2 - penalty
	if q < 0 {
		q = 0
	}
	return q
}

// ApplyOutcome updates mistake scheduling using the SM-2 variant.
// The mistake must not be mastered already; callers filter mastered mistakes out.
func (p Policy) ApplyOutcome(m models.Mistake, isCorrect bool, hintsUsed int, now time.Time) models.Mistake {
	q := p.Quality(isCorrect, hintsUsed)
	d := float64(5 - q)

	ef := m.EaseFactor
	if ef == 0 {
		ef = models.DefaultEaseFactor
	}
	ef = ef + (0.1 - d*(0.08+d*0.02))
	if ef < p.MinEase {
		ef = p.MinEase
	}

	interval := 1
	if q < 3 {
		m.Repetitions = 0
	} else {
		m.Repetitions++
		switch m.Repetitions {
		case 1:
			interval = 1
		case 2:
			interval = 6
		default:
			prev := m.IntervalDays
			if prev < 1 {
				prev = 1
			}
			interval = int(math.Round(float64(prev) * ef))
		}
	}
	if p.MaxIntervalDays > 0 && interval > p.MaxIntervalDays {
		interval = p.MaxIntervalDays
	}
	if interval < 1 {
		interval = 1
	}

	m.EaseFactor = ef
	m.IntervalDays = interval
	m.NextReviewAt = now.AddDate(0, 0, interval)
	m.TimesDrilled++
	if isCorrect {
		m.TimesCorrect++
	}
	drilledAt := now
	m.LastDrilledAt = &drilledAt

	if !m.IsMastered && m.Repetitions >= p.MasteryRepetitions && m.IntervalDays >= p.MasteryIntervalDays {
		m.IsMastered = true
		masteredAt := now
		m.MasteredAt = &masteredAt
	}
	return m
}
