package contracts

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParsePeriodType(t *testing.T) {
	tests := []struct {
		input   string
		want    PeriodType
		wantErr bool
	}{
		{"daily", PeriodDaily, false},
		{"WEEKLY", PeriodWeekly, false},
		{"Monthly", PeriodMonthly, false},
		{"hourly", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePeriodType(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePeriodType(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePeriodType(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestPeriodType_AnchorDate(t *testing.T) {
	date := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		name   string
		period PeriodType
		input  time.Time
		want   time.Time
	}{
		{"daily keeps date", PeriodDaily, date(2026, 10, 14), date(2026, 10, 14)},
		{"daily drops clock", PeriodDaily, time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC), date(2026, 10, 14)},
		{"weekly on friday", PeriodWeekly, date(2026, 10, 16), date(2026, 10, 16)},
		{"weekly on wednesday", PeriodWeekly, date(2026, 10, 14), date(2026, 10, 9)},
		{"weekly on sunday", PeriodWeekly, date(2026, 10, 18), date(2026, 10, 16)},
		{"monthly at month end", PeriodMonthly, date(2026, 9, 30), date(2026, 9, 30)},
		{"monthly mid month", PeriodMonthly, date(2026, 10, 14), date(2026, 9, 30)},
		{"monthly january", PeriodMonthly, date(2026, 1, 5), date(2025, 12, 31)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.period.AnchorDate(tt.input); !got.Equal(tt.want) {
				t.Errorf("AnchorDate() = %s, want %s", got.Format("2006-01-02"), tt.want.Format("2006-01-02"))
			}
		})
	}
}

func TestUniverseSnapshot_Frozen(t *testing.T) {
	v := 1.5
	values := map[string]map[string]*float64{
		"pb_ratio": {"B": &v, "A": nil, "Z": Float(9)},
	}
	entities := []Entity{{ID: "B", Sector: "tech"}, {ID: "A", Sector: "energy"}}

	snap := NewUniverseSnapshot("snap-1", time.Now(), PeriodDaily, entities, values)

	// mutate inputs after freezing
	v = 99
	values["pb_ratio"]["A"] = Float(3)
	entities[0].Sector = "changed"

	if got := snap.Entities(); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Fatalf("Entities() = %v, want [A B]", got)
	}
	if got := snap.Value("B", "pb_ratio"); got == nil || *got != 1.5 {
		t.Errorf("Value(B) = %v, want 1.5", got)
	}
	if got := snap.Value("A", "pb_ratio"); got != nil {
		t.Errorf("Value(A) = %v, want nil", *got)
	}
	if got := snap.Value("Z", "pb_ratio"); got != nil {
		t.Errorf("non-member Z should not be visible, got %v", *got)
	}
	if got := snap.Sectors()["B"]; got != "tech" {
		t.Errorf("sector(B) = %q, want tech", got)
	}
	if got := snap.Coverage("pb_ratio"); got != 0.5 {
		t.Errorf("Coverage() = %v, want 0.5", got)
	}

	col := snap.Column("pb_ratio")
	if len(col) != 2 || col[0].Value != nil || col[1].Value == nil {
		t.Errorf("Column() = %+v, want A=nil B=1.5", col)
	}
}

func TestSnapshotRecord_RoundTrip(t *testing.T) {
	asOf := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
	snap := NewUniverseSnapshot("snap-r", asOf, PeriodMonthly,
		[]Entity{{ID: "E02", Sector: "energy"}, {ID: "E01", Sector: "tech"}},
		map[string]map[string]*float64{
			"pe_ratio": {"E01": Float(14.2), "E02": Float(-12.5)},
			"roe":      {"E01": Float(0.18), "E02": nil},
		})

	data, err := json.Marshal(snap.Record())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var rec SnapshotRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got := rec.Snapshot()

	if got.SnapshotID != "snap-r" || !got.AsOfDate.Equal(asOf) || got.PeriodType != PeriodMonthly {
		t.Errorf("header = %s %s %s", got.SnapshotID, got.AsOfDate, got.PeriodType)
	}
	if ids := got.Entities(); len(ids) != 2 || ids[0] != "E01" || ids[1] != "E02" {
		t.Errorf("Entities() = %v", ids)
	}
	if got.Sectors()["E02"] != "energy" {
		t.Errorf("sector(E02) = %q, want energy", got.Sectors()["E02"])
	}
	for _, metric := range []string{"pe_ratio", "roe"} {
		for _, id := range []string{"E01", "E02"} {
			want, have := snap.Value(id, metric), got.Value(id, metric)
			if (want == nil) != (have == nil) || (want != nil && *want != *have) {
				t.Errorf("Value(%s, %s) = %v, want %v", id, metric, have, want)
			}
		}
	}
	if got.Coverage("roe") != 0.5 {
		t.Errorf("Coverage(roe) = %v, want 0.5", got.Coverage("roe"))
	}
}

func TestDataIssue_Is(t *testing.T) {
	issue := DataIssue{Kind: ErrImplausibleValue, EntityID: "A", Metric: "pb_ratio", RawValue: Float(1000)}

	if !errors.Is(issue, ErrImplausibleValue) {
		t.Error("expected issue to match ErrImplausibleValue")
	}
	if errors.Is(issue, ErrMissingMetric) {
		t.Error("issue should not match ErrMissingMetric")
	}
	if issue.KindName() != "implausible_value" {
		t.Errorf("KindName() = %q", issue.KindName())
	}
}

func TestStage_IsRunFatal(t *testing.T) {
	for _, s := range AllStages() {
		want := s == StageUniverse || s == StageNormalize
		if s.IsRunFatal() != want {
			t.Errorf("%s.IsRunFatal() = %v, want %v", s, s.IsRunFatal(), want)
		}
		if !IsValidStage(string(s)) {
			t.Errorf("IsValidStage(%s) = false", s)
		}
	}
	if StageFactors.ShortName() != "S3" {
		t.Errorf("ShortName() = %s, want S3", StageFactors.ShortName())
	}
}
