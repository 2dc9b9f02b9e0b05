package core

import (
	"context"
	"fmt"
	"testing"
)

// ============================================================================
// Read Path Benchmarks
// ============================================================================

// benchRows builds n asset rows spread over a few owners and teams.
func benchRows(n int) []Row {
	owners := []string{"김철수", "이영희", "박민수", "최동명"}
	teams := []string{"개발팀", "영업팀", "인사팀"}
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = Row{
			"assetId":        fmt.Sprintf("N%05d", i),
			"assetType":      "노트북",
			"assetModelName": "그램",
			"assetSn":        fmt.Sprintf("SN-%d", i),
			"empName":        owners[i%len(owners)],
			"teamName":       teams[i%len(teams)],
			"assetDesc":      nil,
		}
	}
	return rows
}

var benchSearchFields = []string{"assetType", "empName", "teamName", "assetDesc"}

var benchMatched int

// BenchmarkCompileSearch measures parsing the search box.
// This runs on every keystroke.
func BenchmarkCompileSearch(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		CompileSearch("김철수 개발 -모니터 -폐기", benchSearchFields)
	}
}

// BenchmarkSearch_10k measures matching a compiled search over a large table.
func BenchmarkSearch_10k(b *testing.B) {
	rows := benchRows(10000)
	match := CompileSearch("김철수 -영업", benchSearchFields)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		benchMatched = 0
		for _, r := range rows {
			if match(r) {
				benchMatched++
			}
		}
	}
}

// BenchmarkColumnFilters_10k measures per-column filtering.
func BenchmarkColumnFilters_10k(b *testing.B) {
	rows := benchRows(10000)
	active := ColumnFilters{"teamName": "개발", "empName": "김"}.Active(benchSearchFields)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, r := range rows {
			active.Match(r)
		}
	}
}

// BenchmarkTableView_Query measures a full query including paging.
func BenchmarkTableView_Query(b *testing.B) {
	be := newFakeBackend()
	be.assets = benchRows(5000)
	for _, r := range be.assets {
		r["assetStatus"] = "Y"
	}
	v := NewTableView(testAssetDefinition(), be, "", TableOptions{})
	if err := v.Load(context.Background()); err != nil {
		b.Fatal(err)
	}
	p := QueryParams{Search: "개발", Filters: ColumnFilters{"empName": "철수"}, Page: 2, Size: 50}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v.Query(p)
	}
}

// ============================================================================
// Conversion Benchmarks
// ============================================================================

// BenchmarkParseDate benchmarks the date shapes seen in imports and
// backend payloads.
func BenchmarkParseDate(b *testing.B) {
	testCases := []string{
		"2024-01-15T00:00:00", // backend
		"2024-01-15",          // ISO
		"2024.01.15",          // spreadsheet export
		"20240115",            // compact
		"2024/01",             // month only
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ParseDate(tc)
		}
	}
}

// BenchmarkCleanCell benchmarks cell cleaning on imported values.
func BenchmarkCleanCell(b *testing.B) {
	testCases := []string{
		"노트북",
		"  SN1234  ",
		`="E001"`,
		`"본사_3F"`,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			CleanCell(tc)
		}
	}
}

// BenchmarkEditTracker measures recording an edit on a wide row.
func BenchmarkEditTracker(b *testing.B) {
	def := testAssetDefinition()
	orig := benchRows(1)[0]
	next := orig.Clone()
	next["assetSn"] = "SN-NEW"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tr := NewRowEditTracker(def.TrackedFields())
		tr.RecordChange("N00000", orig, next)
	}
}

// BenchmarkCleanCellParallel tests concurrent cell cleaning.
func BenchmarkCleanCellParallel(b *testing.B) {
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			CleanCell(`="SN-0001"`)
		}
	})
}
