package state

import (
	"encoding/binary"
	"fmt"

	"github.com/calvinmclean/pilldispenser"
)

const (
	// PayloadSize is the encoded size of a DeviceState without its checksum
	PayloadSize = 14
	// RecordSize is the number of bytes the record occupies in non-volatile storage
	RecordSize = PayloadSize + 2
)

// Encode serializes s followed by its CRC-16. Fields are written in a fixed order, big-endian:
//
//	phase u8, portion_count u8, motor_calibrated u8,
//	steps_per_revolution u16, steps_per_drop u16, current_motor_step u16, start_motor_step u16,
//	rotation_in_progress u8, continue_dispensing u8, calibration_in_progress u8, crc u16
func Encode(s pilldispenser.DeviceState) ([RecordSize]byte, error) {
	var buf [RecordSize]byte

	if !s.Phase.Valid() {
		return buf, fmt.Errorf("invalid phase %d", s.Phase)
	}
	ranges := []struct {
		name  string
		v     int
		limit int
	}{
		{"portion_count", s.PortionCount, 0xFF},
		{"steps_per_revolution", s.StepsPerRevolution, 0xFFFF},
		{"steps_per_drop", s.StepsPerDrop, 0xFFFF},
		{"current_motor_step", s.CurrentMotorStep, 0xFFFF},
		{"start_motor_step", s.StartMotorStep, 0xFFFF},
	}
	for _, r := range ranges {
		if r.v < 0 || r.v > r.limit {
			return buf, fmt.Errorf("%s out of range: %d", r.name, r.v)
		}
	}

	buf[0] = byte(s.Phase)
	buf[1] = byte(s.PortionCount)
	buf[2] = b2u(s.MotorCalibrated)
	binary.BigEndian.PutUint16(buf[3:], uint16(s.StepsPerRevolution))
	binary.BigEndian.PutUint16(buf[5:], uint16(s.StepsPerDrop))
	binary.BigEndian.PutUint16(buf[7:], uint16(s.CurrentMotorStep))
	binary.BigEndian.PutUint16(buf[9:], uint16(s.StartMotorStep))
	buf[11] = b2u(s.RotationInProgress)
	buf[12] = b2u(s.ContinueDispensing)
	buf[13] = b2u(s.CalibrationInProgress)

	binary.BigEndian.PutUint16(buf[PayloadSize:], CRC16(buf[:PayloadSize]))

	return buf, nil
}

// Decode verifies the checksum of a record and parses it. Any checksum mismatch, a phase outside
// Calibration/Dispensing, or a boolean byte other than 0 or 1 is reported as ErrCorrupt
func Decode(buf []byte) (pilldispenser.DeviceState, error) {
	if len(buf) < RecordSize {
		return pilldispenser.DeviceState{}, fmt.Errorf("%w: short record (%d bytes)", ErrCorrupt, len(buf))
	}

	stored := binary.BigEndian.Uint16(buf[PayloadSize:])
	if calculated := CRC16(buf[:PayloadSize]); stored != calculated {
		return pilldispenser.DeviceState{}, fmt.Errorf("%w: checksum mismatch: stored=%04X calculated=%04X", ErrCorrupt, stored, calculated)
	}

	s := pilldispenser.DeviceState{
		Phase:              pilldispenser.Phase(buf[0]),
		PortionCount:       int(buf[1]),
		StepsPerRevolution: int(binary.BigEndian.Uint16(buf[3:])),
		StepsPerDrop:       int(binary.BigEndian.Uint16(buf[5:])),
		CurrentMotorStep:   int(binary.BigEndian.Uint16(buf[7:])),
		StartMotorStep:     int(binary.BigEndian.Uint16(buf[9:])),
	}
	if !s.Phase.Valid() {
		return pilldispenser.DeviceState{}, fmt.Errorf("%w: invalid phase %d", ErrCorrupt, buf[0])
	}

	var err error
	flags := []struct {
		dst *bool
		b   byte
	}{
		{&s.MotorCalibrated, buf[2]},
		{&s.RotationInProgress, buf[11]},
		{&s.ContinueDispensing, buf[12]},
		{&s.CalibrationInProgress, buf[13]},
	}
	for _, f := range flags {
		*f.dst, err = u2b(f.b)
		if err != nil {
			return pilldispenser.DeviceState{}, err
		}
	}

	return s, nil
}

func b2u(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func u2b(u byte) (bool, error) {
	switch u {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: invalid boolean byte %d", ErrCorrupt, u)
	}
}
