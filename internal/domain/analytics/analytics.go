// Package analytics derives progress reports from a user's stored session
// history: overview counters, per-game and per-skill breakdowns, weekly and
// monthly series, achievements and practice recommendations.
//
// Every function is pure. A score that is missing from a record's
// averageScores is left out of every mean rather than counted as zero.
package analytics

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/okian/oratora/internal/domain/model"
)

// Timeframe selects how far back a report looks.
type Timeframe string

const (
	Timeframe7d  Timeframe = "7d"
	Timeframe30d Timeframe = "30d"
	Timeframe90d Timeframe = "90d"
	TimeframeAll Timeframe = "all"
)

// DefaultTimeframe is used when the caller does not pick one.
const DefaultTimeframe = Timeframe30d

// ErrInvalidTimeframe is returned by ParseTimeframe.
var ErrInvalidTimeframe = errors.New("invalid timeframe")

// Thresholds used by achievements and recommendations.
const (
	HighScore             = 8.0
	ConsistentAverage     = 7.0
	ConsistentMinScores   = 5
	WeakSkillThreshold    = 6.0
	RecentPracticeMinimum = 3
)

var gameMilestones = map[model.GameType]struct {
	name  string
	count int
}{
	model.GameRapidFire:  {"rapidFireMaster", 20},
	model.GameConductor:  {"conductorPro", 15},
	model.GameTripleStep: {"tripleStepExpert", 10},
}

var sessionMilestones = []struct {
	name  string
	count int
}{
	{"firstSession", 1},
	{"tenSessions", 10},
	{"fiftySessions", 50},
	{"hundredSessions", 100},
}

// TrackedSkills are the skills reported by SkillProgress, in display order.
var TrackedSkills = []string{
	model.SkillResponseRate,
	model.SkillPace,
	model.SkillEnergy,
	model.SkillResponseSpeed,
	model.SkillEnergyRange,
	model.SkillContentContinuity,
	model.SkillBreathRecovery,
	model.SkillOverallPerformance,
	model.SkillPrimary,
	model.SkillSecondary,
	model.SkillTertiary,
	model.SkillRecovery,
	model.SkillOverall,
}

// ParseTimeframe validates s. The empty string selects DefaultTimeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	switch tf := Timeframe(strings.ToLower(strings.TrimSpace(s))); tf {
	case "":
		return DefaultTimeframe, nil
	case Timeframe7d, Timeframe30d, Timeframe90d, TimeframeAll:
		return tf, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeframe, s)
	}
}

// Window is the look-back duration of tf; zero means unbounded.
func (tf Timeframe) Window() time.Duration {
	switch tf {
	case Timeframe7d:
		return 7 * 24 * time.Hour
	case Timeframe30d:
		return 30 * 24 * time.Hour
	case Timeframe90d:
		return 90 * 24 * time.Hour
	default:
		return 0
	}
}

// Trend is the least-squares slope of scores against their index 0..N-1.
// Fewer than two scores have no trend.
func Trend(scores []float64) float64 {
	n := float64(len(scores))
	if len(scores) < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range scores {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	return (n*sumXY - sumX*sumY) / (n*sumX2 - sumX*sumX)
}

// Filter keeps the records created within tf of now, oldest first.
func Filter(records []model.HistoryRecord, tf Timeframe, now time.Time) []model.HistoryRecord {
	out := chronological(records)
	w := tf.Window()
	if w == 0 {
		return out
	}
	cutoff := now.Add(-w)
	return slices.DeleteFunc(out, func(r model.HistoryRecord) bool {
		return r.CreatedAt.Before(cutoff)
	})
}

// Overview summarises a set of records.
type Overview struct {
	TotalSessions          int        `json:"totalSessions"`
	CompletedSessions      int        `json:"completedSessions"`
	CompletionRate         float64    `json:"completionRate"`
	TotalDuration          float64    `json:"totalDuration"`
	AverageScore           float64    `json:"averageScore"`
	ImprovementRate        float64    `json:"improvementRate"`
	AverageSessionDuration float64    `json:"averageSessionDuration"`
	LastSessionDate        *time.Time `json:"lastSessionDate"`
	StreakDays             int        `json:"streakDays"`
}

// OverviewOf computes the overview of records. AverageScore is the mean of
// every numeric sub-score; ImprovementRate is the trend of the overall
// score in chronological order.
func OverviewOf(records []model.HistoryRecord, now time.Time) Overview {
	recs := chronological(records)
	o := Overview{TotalSessions: len(recs)}
	var all []float64
	for _, r := range recs {
		if r.Completed {
			o.CompletedSessions++
		}
		o.TotalDuration += r.Duration
		for _, v := range r.SessionData.AverageScores {
			all = append(all, v)
		}
	}
	if o.TotalSessions > 0 {
		o.CompletionRate = percent(o.CompletedSessions, o.TotalSessions)
		o.AverageSessionDuration = math.Round(o.TotalDuration / float64(o.TotalSessions))
		last := recs[len(recs)-1].CreatedAt
		o.LastSessionDate = &last
	}
	o.AverageScore = round1(mean(all))
	o.ImprovementRate = round1(Trend(overallScores(recs)))
	o.StreakDays = streakDays(recs, now)
	return o
}

// GameStats is the per-game part of a report.
type GameStats struct {
	TotalSessions          int        `json:"totalSessions"`
	CompletedSessions      int        `json:"completedSessions"`
	CompletionRate         float64    `json:"completionRate"`
	TotalDuration          float64    `json:"totalDuration"`
	AverageScore           float64    `json:"averageScore"`
	AverageSessionDuration float64    `json:"averageSessionDuration"`
	LastPlayed             *time.Time `json:"lastPlayed"`
}

// GameBreakdown reports every game, including ones never played.
func GameBreakdown(records []model.HistoryRecord) map[model.GameType]GameStats {
	out := make(map[model.GameType]GameStats, len(model.GameTypes))
	for _, g := range model.GameTypes {
		var recs []model.HistoryRecord
		for _, r := range records {
			if r.GameType == g {
				recs = append(recs, r)
			}
		}
		gs := GameStats{TotalSessions: len(recs)}
		for _, r := range recs {
			if r.Completed {
				gs.CompletedSessions++
			}
			gs.TotalDuration += r.Duration
			if gs.LastPlayed == nil || r.CreatedAt.After(*gs.LastPlayed) {
				t := r.CreatedAt
				gs.LastPlayed = &t
			}
		}
		if gs.TotalSessions > 0 {
			gs.CompletionRate = percent(gs.CompletedSessions, gs.TotalSessions)
			gs.AverageSessionDuration = math.Round(gs.TotalDuration / float64(gs.TotalSessions))
		}
		gs.AverageScore = round1(mean(overallScores(recs)))
		out[g] = gs
	}
	return out
}

// SkillScore is one measurement of a skill.
type SkillScore struct {
	Score    float64        `json:"score"`
	Date     time.Time      `json:"date"`
	GameType model.GameType `json:"gameType"`
}

// SkillStats aggregates the measurements of one skill.
type SkillStats struct {
	Scores       []SkillScore `json:"scores"`
	AverageScore float64      `json:"averageScore"`
	Trend        float64      `json:"trend"`
}

// SkillProgress reports every tracked skill in chronological order.
func SkillProgress(records []model.HistoryRecord) map[string]SkillStats {
	recs := chronological(records)
	out := make(map[string]SkillStats, len(TrackedSkills))
	for _, skill := range TrackedSkills {
		scores := skillScores(recs, skill)
		vals := values(scores)
		out[skill] = SkillStats{
			Scores:       scores,
			AverageScore: mean(vals),
			Trend:        Trend(vals),
		}
	}
	return out
}

// Period is one bucket of a trend series.
type Period struct {
	Period        string  `json:"period"`
	AverageScore  float64 `json:"averageScore"`
	TotalSessions int     `json:"totalSessions"`
	TotalDuration float64 `json:"totalDuration"`
}

// Trends holds the weekly and monthly series.
type Trends struct {
	Weekly  []Period `json:"weekly"`
	Monthly []Period `json:"monthly"`
}

// TrendSeries buckets records by ISO week ("2006-W01") and month ("2006-01").
func TrendSeries(records []model.HistoryRecord) Trends {
	return Trends{
		Weekly:  bucket(records, weekKey),
		Monthly: bucket(records, monthKey),
	}
}

// Achievement is one unlockable badge. Date is when it was earned.
type Achievement struct {
	Unlocked bool       `json:"unlocked"`
	Date     *time.Time `json:"date"`
}

// Achievements evaluates every badge against records.
func Achievements(records []model.HistoryRecord) map[string]Achievement {
	recs := chronological(records)
	out := make(map[string]Achievement)

	for _, m := range sessionMilestones {
		a := Achievement{}
		if len(recs) >= m.count {
			a = unlockedAt(recs[m.count-1].CreatedAt)
		}
		out[m.name] = a
	}

	out["highScorer"] = Achievement{}
	out["consistentPerformer"] = Achievement{}
	var overall []float64
	var best float64
	var bestAt time.Time
	for _, r := range recs {
		v, ok := r.SessionData.AverageScores[model.SkillOverall]
		if !ok {
			continue
		}
		if len(overall) == 0 || v > best {
			best, bestAt = v, r.CreatedAt
		}
		overall = append(overall, v)
	}
	if len(overall) > 0 && best >= HighScore {
		out["highScorer"] = unlockedAt(bestAt)
	}
	if len(overall) >= ConsistentMinScores && mean(overall) >= ConsistentAverage {
		out["consistentPerformer"] = unlockedAt(recs[len(recs)-1].CreatedAt)
	}

	for g, m := range gameMilestones {
		a := Achievement{}
		n := 0
		for _, r := range recs {
			if r.GameType != g {
				continue
			}
			n++
			if n == m.count {
				a = unlockedAt(r.CreatedAt)
				break
			}
		}
		out[m.name] = a
	}
	return out
}

// Recommendation is a suggested next step for the user.
type Recommendation struct {
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    string         `json:"priority"`
	Skill       string         `json:"skill,omitempty"`
	GameType    model.GameType `json:"gameType,omitempty"`
}

// Recommendations derives practice advice from records.
func Recommendations(records []model.HistoryRecord, now time.Time) []Recommendation {
	if len(records) == 0 {
		return []Recommendation{{
			Type:        "getting_started",
			Title:       "Start Your Journey",
			Description: "Complete your first session to begin tracking your progress!",
			Priority:    "high",
		}}
	}
	out := []Recommendation{}

	progress := SkillProgress(records)
	weakest, weakestAvg := "", math.Inf(1)
	for _, skill := range TrackedSkills {
		st := progress[skill]
		if len(st.Scores) == 0 || st.AverageScore >= WeakSkillThreshold {
			continue
		}
		if st.AverageScore < weakestAvg {
			weakest, weakestAvg = skill, st.AverageScore
		}
	}
	if weakest != "" {
		name := SkillName(weakest)
		out = append(out, Recommendation{
			Type:        "skill_improvement",
			Title:       "Focus on " + name,
			Description: fmt.Sprintf("Your %s score is %.1f/10. Try practicing more to improve this skill.", name, weakestAvg),
			Priority:    "high",
			Skill:       weakest,
		})
	}

	breakdown := GameBreakdown(records)
	for _, g := range model.GameTypes {
		if breakdown[g].TotalSessions == 0 {
			out = append(out, Recommendation{
				Type:        "try_new_game",
				Title:       "Try a New Game",
				Description: fmt.Sprintf("Expand your skills by trying the %s game.", GameName(g)),
				Priority:    "medium",
				GameType:    g,
			})
			break
		}
	}

	if len(Filter(records, Timeframe7d, now)) < RecentPracticeMinimum {
		out = append(out, Recommendation{
			Type:        "practice_frequency",
			Title:       "Practice Regularly",
			Description: "Try to practice at least 3 times per week for best results.",
			Priority:    "medium",
		})
	}
	return out
}

// SkillAnalysis is the single-skill drill-down.
type SkillAnalysis struct {
	Skill         string         `json:"skill"`
	GameType      model.GameType `json:"gameType,omitempty"`
	TotalSessions int            `json:"totalSessions"`
	AverageScore  float64        `json:"averageScore"`
	Trend         float64        `json:"trend"`
	Scores        []SkillScore   `json:"scores"`
	Improvement   float64        `json:"improvement"`
}

// SkillPerformance analyses one skill, optionally restricted to one game.
func SkillPerformance(records []model.HistoryRecord, skill string, game model.GameType) SkillAnalysis {
	recs := chronological(records)
	if game != "" {
		recs = slices.DeleteFunc(recs, func(r model.HistoryRecord) bool { return r.GameType != game })
	}
	scores := skillScores(recs, skill)
	vals := values(scores)
	a := SkillAnalysis{
		Skill:         skill,
		GameType:      game,
		TotalSessions: len(scores),
		AverageScore:  mean(vals),
		Trend:         Trend(vals),
		Scores:        scores,
	}
	if len(vals) >= 2 {
		a.Improvement = vals[len(vals)-1] - vals[0]
	}
	return a
}

// Report is the full progress report for one timeframe.
type Report struct {
	Overview        Overview                     `json:"overview"`
	GameBreakdown   map[model.GameType]GameStats `json:"gameBreakdown"`
	SkillProgress   map[string]SkillStats        `json:"skillProgress"`
	Trends          Trends                       `json:"trends"`
	Achievements    map[string]Achievement       `json:"achievements"`
	Recommendations []Recommendation             `json:"recommendations"`
}

// Analyze builds the report for the records inside tf.
func Analyze(records []model.HistoryRecord, tf Timeframe, now time.Time) Report {
	recs := Filter(records, tf, now)
	return Report{
		Overview:        OverviewOf(recs, now),
		GameBreakdown:   GameBreakdown(recs),
		SkillProgress:   SkillProgress(recs),
		Trends:          TrendSeries(recs),
		Achievements:    Achievements(recs),
		Recommendations: Recommendations(recs, now),
	}
}

// SkillName turns a camelCase skill key into a title, "energyRange" -> "Energy Range".
func SkillName(skill string) string {
	var b strings.Builder
	for i, r := range skill {
		switch {
		case i == 0:
			b.WriteString(strings.ToUpper(string(r)))
		case r >= 'A' && r <= 'Z':
			b.WriteByte(' ')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// GameName is the display name of g.
func GameName(g model.GameType) string {
	switch g {
	case model.GameRapidFire:
		return "Rapid Fire Analogies"
	case model.GameConductor:
		return "The Conductor"
	case model.GameTripleStep:
		return "Triple Step"
	default:
		return string(g)
	}
}

func chronological(records []model.HistoryRecord) []model.HistoryRecord {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b model.HistoryRecord) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

func overallScores(recs []model.HistoryRecord) []float64 {
	return values(skillScores(recs, model.SkillOverall))
}

func skillScores(recs []model.HistoryRecord, skill string) []SkillScore {
	out := []SkillScore{}
	for _, r := range recs {
		if v, ok := r.SessionData.AverageScores[skill]; ok {
			out = append(out, SkillScore{Score: v, Date: r.CreatedAt, GameType: r.GameType})
		}
	}
	return out
}

func values(scores []SkillScore) []float64 {
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = s.Score
	}
	return out
}

func bucket(records []model.HistoryRecord, key func(time.Time) string) []Period {
	groups := map[string][]model.HistoryRecord{}
	for _, r := range records {
		k := key(r.CreatedAt)
		groups[k] = append(groups[k], r)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]Period, 0, len(keys))
	for _, k := range keys {
		recs := groups[k]
		p := Period{Period: k, TotalSessions: len(recs)}
		for _, r := range recs {
			p.TotalDuration += r.Duration
		}
		p.AverageScore = round1(mean(overallScores(recs)))
		out = append(out, p)
	}
	return out
}

func weekKey(t time.Time) string {
	y, w := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

func monthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// streakDays counts consecutive UTC days, ending today, with at least one session.
func streakDays(recs []model.HistoryRecord, now time.Time) int {
	days := map[string]bool{}
	for _, r := range recs {
		days[r.CreatedAt.UTC().Format(time.DateOnly)] = true
	}
	streak := 0
	for d := now.UTC(); days[d.Format(time.DateOnly)]; d = d.AddDate(0, 0, -1) {
		streak++
	}
	return streak
}

func unlockedAt(t time.Time) Achievement {
	return Achievement{Unlocked: true, Date: &t}
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func percent(part, total int) float64 {
	return float64(part) / float64(total) * 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
