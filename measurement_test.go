package bmh

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestClassifyImpedance(t *testing.T) {
	counts := map[ReadingClass]int{}
	for v := 0; v <= 0xFFFF; v++ {
		class := ClassifyImpedance(uint16(v))
		counts[class]++
		switch uint16(v) {
		case 0xFFFF, 0xFFF1, 0xFFF2:
			if class != ReadingInvalid {
				t.Fatalf("0x%04X classified %v", v, class)
			}
		case 0:
			if class != ReadingPending {
				t.Fatalf("0x0000 classified %v", class)
			}
		default:
			if class != ReadingValid {
				t.Fatalf("0x%04X classified %v", v, class)
			}
		}
	}
	if counts[ReadingInvalid] != 3 || counts[ReadingPending] != 1 || counts[ReadingValid] != 0x10000-4 {
		t.Fatalf("unexpected distribution %v", counts)
	}
}

func statusPDU(workStatus2 byte, impedance uint16) *ProtocolDataUnit {
	data := make([]byte, 11)
	data[statusWorkStatus2] = workStatus2
	binary.BigEndian.PutUint16(data[statusImpedance:], impedance)
	return &ProtocolDataUnit{Command: CommandStatus, Status: 0x01, Data: data}
}

func TestDecodeStatus(t *testing.T) {
	cases := []struct {
		name        string
		workStatus2 byte
		impedance   uint16
		state       ImpedanceState
		class       ReadingClass
		value       uint16
	}{
		{"not started", 0x00, 500, ImpedanceNotStarted, ReadingNotReady, 0},
		{"measuring", 0x1F, 500, ImpedanceMeasuring, ReadingNotReady, 0},
		{"valid", 0x20, 512, ImpedanceSucceeded, ReadingValid, 512},
		{"low nibble ignored", 0x2A, 512, ImpedanceSucceeded, ReadingValid, 512},
		{"contact failure", 0x20, 0xFFF1, ImpedanceSucceeded, ReadingInvalid, 0xFFF1},
		{"pending", 0x20, 0, ImpedanceSucceeded, ReadingPending, 0},
		{"failed", 0x30, 512, ImpedanceFailed, ReadingFailed, 0},
		{"unknown state", 0x70, 512, ImpedanceState(7), ReadingNotReady, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := DecodeStatus(statusPDU(c.workStatus2, c.impedance))
			if err != nil {
				t.Fatal(err)
			}
			if got.State != c.state || got.Reading.Class != c.class || got.Reading.Value != c.value || got.WorkStatus != 0x01 {
				t.Fatalf("got %+v", got)
			}
		})
	}
	if _, err := DecodeStatus(&ProtocolDataUnit{Data: []byte{0x20}}); !errors.Is(err, ErrStructuralMismatch) {
		t.Fatalf("expected ErrStructuralMismatch, got %v", err)
	}
}

var testProfile = UserProfile{Age: 21, Gender: Male, Height: 175, Weight: 64.0}

// fat 20.5, water 55.3, muscle 45.0, bone 2.8, bmr 1500, visceral 7,
// bmi 20.9, body age 23, protein 18.2, subcutaneous 11.4
var compositionData = []byte{
	0x00, 0xCD, 0x02, 0x29, 0x01, 0xC2, 0x1C, 0x05, 0xDC, 0x07,
	0x00, 0xD1, 0x17, 0x00, 0xB6, 0x00, 0x72,
}

func TestDecodeComposition(t *testing.T) {
	got, err := DecodeComposition(&ProtocolDataUnit{Command: CommandComposition, Data: compositionData}, testProfile)
	if err != nil {
		t.Fatal(err)
	}
	want := BodyComposition{
		BodyFat: 20.5, Water: 55.3, MuscleRate: 45.0, BoneMass: 2.8, BMR: 1500,
		VisceralFat: 7, BMI: 20.9, BodyAge: 23, Protein: 18.2, SubcutaneousFat: 11.4,
	}
	if math.Abs(got.MuscleMass-28.8) > 0.01 {
		t.Fatalf("muscle mass %v, want 28.8", got.MuscleMass)
	}
	got.MuscleMass = 0
	if *got != want {
		t.Fatalf("got %+v\nwant %+v", *got, want)
	}
}

func TestDecodeCompositionDeviceErrors(t *testing.T) {
	cases := []struct {
		code byte
		err  error
	}{
		{0x01, ErrImpedanceData},
		{0x02, ErrAge},
		{0x03, ErrHeight},
		{0x04, ErrWeight},
		{0x05, ErrGender},
		{0x09, ErrUnknownDevice},
	}
	for _, c := range cases {
		got, err := DecodeComposition(&ProtocolDataUnit{Status: c.code, Data: compositionData}, testProfile)
		if got != nil {
			t.Fatalf("code 0x%02X returned a partial result", c.code)
		}
		if !errors.Is(err, c.err) {
			t.Fatalf("code 0x%02X: expected %v, got %v", c.code, c.err, err)
		}
		var de *DeviceError
		if !errors.As(err, &de) || de.Code != c.code || de.Command != CommandComposition {
			t.Fatalf("code 0x%02X: unexpected error %#v", c.code, err)
		}
	}
}

func TestUserProfileValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(p *UserProfile)
		invalid bool
	}{
		{"reference", func(p *UserProfile) {}, false},
		{"height 89", func(p *UserProfile) { p.Height = 89 }, true},
		{"height 90", func(p *UserProfile) { p.Height = 90 }, false},
		{"height 220", func(p *UserProfile) { p.Height = 220 }, false},
		{"height 221", func(p *UserProfile) { p.Height = 221 }, true},
		{"weight 9.9", func(p *UserProfile) { p.Weight = 9.9 }, true},
		{"weight 10.0", func(p *UserProfile) { p.Weight = 10.0 }, false},
		{"weight 200.0", func(p *UserProfile) { p.Weight = 200.0 }, false},
		{"weight 200.1", func(p *UserProfile) { p.Weight = 200.1 }, true},
		{"weight NaN", func(p *UserProfile) { p.Weight = math.NaN() }, true},
		{"age 5", func(p *UserProfile) { p.Age = 5 }, true},
		{"age 6", func(p *UserProfile) { p.Age = 6 }, false},
		{"age 99", func(p *UserProfile) { p.Age = 99 }, false},
		{"age 100", func(p *UserProfile) { p.Age = 100 }, true},
		{"female", func(p *UserProfile) { p.Gender = Female }, false},
		{"gender 2", func(p *UserProfile) { p.Gender = 2 }, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := testProfile
			c.mutate(&p)
			err := p.Validate()
			if c.invalid != (err != nil) {
				t.Fatalf("validate %+v: %v", p, err)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestEncodeCompositionRoundTrip(t *testing.T) {
	profiles := []UserProfile{
		testProfile,
		{Age: 6, Gender: Female, Height: 90, Weight: 10.0},
		{Age: 99, Gender: Male, Height: 220, Weight: 200.0},
		{Age: 40, Gender: Female, Height: 163, Weight: 70.3},
	}
	for _, p := range profiles {
		for _, impedance := range []uint16{1, 480, 0xFFEF} {
			frame, err := BuildFrame(CommandComposition, DeviceType, EncodeComposition(p, impedance))
			if err != nil {
				t.Fatal(err)
			}
			if len(frame) != 13 || frame[1] != 0x0B || frame[11] != Checksum(frame) {
				t.Fatalf("bad frame % x", frame)
			}
			if int(frame[4]) != p.Height ||
				binary.BigEndian.Uint16(frame[5:]) != uint16(math.Round(p.Weight*10)) ||
				int(frame[7]) != p.Age ||
				Gender(frame[8]) != p.Gender ||
				binary.BigEndian.Uint16(frame[9:]) != impedance {
				t.Fatalf("profile %+v impedance %d encoded as % x", p, impedance, frame)
			}
		}
	}
}
