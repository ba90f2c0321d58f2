package readiness

import (
	"errors"
	"reflect"
	"testing"

	"github.com/nerrad567/gray-logic-forensics/internal/evidence"
	"github.com/nerrad567/gray-logic-forensics/internal/profile"
)

func TestReport_Summary(t *testing.T) {
	report := &Report{
		Counts:       profile.Counts{Devices: 2, Platforms: 1, LanComponents: 1, Entities: 3},
		Platforms:    []string{"hue"},
		Stores:       4,
		ReservedKeys: 2,
		ProvisionFailures: []*evidence.ProvisionFailure{
			{Category: evidence.CategoryLAN, ObjectID: "router", Err: evidence.ErrCredentialUnavailable},
		},
		Registration: []evidence.RegistrationResult{
			{Path: evidence.PathCloud, Active: true, Entities: 3},
			{Path: evidence.PathLAN, Reserved: true},
			{Path: evidence.PathDevice, Err: errors.New("boom")},
		},
		MaintenanceErr: errors.New("no broker"),
	}

	got := report.Summary()
	want := Summary{
		Devices:           2,
		Platforms:         []string{"hue"},
		LanComponents:     1,
		Entities:          3,
		Stores:            4,
		ReservedKeys:      2,
		ProvisionFailures: 1,
		ActivePaths:       []string{"cloud"},
		FailedPaths:       []string{"device"},
		Maintained:        false,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Summary() = %+v, want %+v", got, want)
	}

	fields := got.Fields()
	if fields["stores"] != 4 || fields["failed_paths"] != 1 || fields["maintained"] != false {
		t.Errorf("Fields() = %v", fields)
	}
}

func TestReport_SummaryEmpty(t *testing.T) {
	got := (&Report{}).Summary()
	if got.ActivePaths == nil || got.FailedPaths == nil || got.Platforms == nil {
		t.Error("Summary() must serialise empty lists, not null")
	}
	if !got.Maintained {
		t.Error("Maintained = false without a maintenance error")
	}
}
