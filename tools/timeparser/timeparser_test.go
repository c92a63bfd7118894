package timeparser_test

import (
	"testing"
	"time"

	"github.com/septivank/city-signals/tools/timeparser"
)

func TestParseLegacyTimestamp_RFC3339(t *testing.T) {
	result, err := timeparser.ParseLegacyTimestamp("2023-04-12T08:15:30.123Z")
	if err != nil {
		t.Fatalf("Failed to parse timestamp: %v", err)
	}

	expected := time.Date(2023, 4, 12, 8, 15, 30, 123000000, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
}

func TestParseLegacyTimestamp_PostgresText(t *testing.T) {
	result, err := timeparser.ParseLegacyTimestamp("2023-04-12 11:15:30.5+03")
	if err != nil {
		t.Fatalf("Failed to parse timestamp: %v", err)
	}

	expected := time.Date(2023, 4, 12, 8, 15, 30, 500000000, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
	if result.Location() != time.UTC {
		t.Errorf("Expected UTC result, got %v", result.Location())
	}
}

func TestParseLegacyTimestamp_NoZone(t *testing.T) {
	result, err := timeparser.ParseLegacyTimestamp("2023-04-12 08:15:30")
	if err != nil {
		t.Fatalf("Failed to parse timestamp: %v", err)
	}

	expected := time.Date(2023, 4, 12, 8, 15, 30, 0, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
}

func TestParseLegacyTimestamp_DayFirst(t *testing.T) {
	result, err := timeparser.ParseLegacyTimestamp("29/12/2022 10:30:45")
	if err != nil {
		t.Fatalf("Failed to parse timestamp: %v", err)
	}

	expected := time.Date(2022, 12, 29, 10, 30, 45, 0, time.UTC)
	if !result.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, result)
	}
}

func TestParseLegacyTimestamp_Invalid(t *testing.T) {
	if _, err := timeparser.ParseLegacyTimestamp("invalid-date-string"); err == nil {
		t.Error("Expected error for invalid timestamp")
	}
	if _, err := timeparser.ParseLegacyTimestamp(""); err == nil {
		t.Error("Expected error for empty timestamp")
	}
}
