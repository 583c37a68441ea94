// Package midifile converts note sequences to and from Standard MIDI Files.
package midifile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/cwolffff/m00sic"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Resolution is the number of ticks per quarter note written to files.
const Resolution = 220

var ErrUnsupportedTimeFormat = errors.New("only metric time formats are supported")

type event struct {
	tick     uint32
	on       bool
	pitch    uint8
	velocity uint8
}

// Write encodes the sequence as a format 1 MIDI file: the first track holds
// the tempo, the second the notes on channel 0.
func Write(w io.Writer, seq m00sic.NoteSequence) error {
	if err := seq.Validate(); err != nil {
		return fmt.Errorf("midifile.Write: %w", err)
	}
	tempo := seq.Tempo
	if tempo <= 0 {
		tempo = m00sic.DefaultTempo
	}
	ticksPerSecond := tempo / 60 * Resolution
	toTicks := func(sec float64) uint32 {
		return uint32(math.Round(sec * ticksPerSecond))
	}
	s := smf.NewSMF1()
	s.TimeFormat = smf.MetricTicks(Resolution)

	var meta smf.Track
	meta.Add(0, smf.MetaTrackSequenceName("m00sic"))
	meta.Add(0, smf.MetaMeter(4, 4))
	meta.Add(0, smf.MetaTempo(tempo))
	meta.Close(0)
	if err := s.Add(meta); err != nil {
		return fmt.Errorf("could not add tempo track: %w", err)
	}

	events := make([]event, 0, 2*len(seq.Notes))
	for _, n := range seq.Notes {
		start, end := toTicks(n.StartTime), toTicks(n.EndTime)
		if end <= start {
			end = start + 1
		}
		events = append(events,
			event{tick: start, on: true, pitch: uint8(n.Pitch), velocity: uint8(n.Velocity)},
			event{tick: end, on: false, pitch: uint8(n.Pitch)})
	}
	// note-offs go first so that a repeated pitch is released before it is
	// struck again
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return !events[i].on && events[j].on
	})
	var notes smf.Track
	var prev uint32
	for _, e := range events {
		if e.on {
			notes.Add(e.tick-prev, midi.NoteOn(0, e.pitch, e.velocity))
		} else {
			notes.Add(e.tick-prev, midi.NoteOff(0, e.pitch))
		}
		prev = e.tick
	}
	var closing uint32
	if total := toTicks(seq.TotalTime); total > prev {
		closing = total - prev
	}
	notes.Close(closing)
	if err := s.Add(notes); err != nil {
		return fmt.Errorf("could not add note track: %w", err)
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("could not write MIDI data: %w", err)
	}
	return nil
}

// Bytes is a convenience wrapper around Write.
func Bytes(seq m00sic.NoteSequence) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, seq); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile writes the sequence to the named file, creating or truncating
// it.
func WriteFile(path string, seq m00sic.NoteSequence) error {
	b, err := Bytes(seq)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("could not write file %v: %w", path, err)
	}
	return nil
}

type absEvent struct {
	tick uint64
	msg  smf.Message
}

// Read decodes every note of every track and channel. The tempo map is
// honored; the first tempo becomes the Tempo of the sequence. Notes still
// sounding at the end of the file are released at the last event.
func Read(r io.Reader) (m00sic.NoteSequence, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return m00sic.NoteSequence{}, fmt.Errorf("could not parse MIDI data: %w", err)
	}
	mt, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return m00sic.NoteSequence{}, ErrUnsupportedTimeFormat
	}
	resolution := float64(mt)
	var events []absEvent
	for _, track := range s.Tracks {
		var tick uint64
		for _, ev := range track {
			tick += uint64(ev.Delta)
			events = append(events, absEvent{tick: tick, msg: ev.Message})
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].tick < events[j].tick
	})

	seq := m00sic.NewNoteSequence()
	seq.Tempo = 0
	tempo := m00sic.DefaultTempo
	var lastTick uint64
	var seconds float64
	type key struct{ channel, pitch uint8 }
	open := map[key][]int{} // indices of sounding notes in seq.Notes
	for _, e := range events {
		seconds += float64(e.tick-lastTick) / resolution * 60 / tempo
		lastTick = e.tick
		var bpm float64
		if e.msg.GetMetaTempo(&bpm) {
			if seq.Tempo == 0 {
				seq.Tempo = bpm
			}
			if bpm > 0 {
				tempo = bpm
			}
			continue
		}
		var ch, pitch, vel uint8
		msg := midi.Message(e.msg)
		switch {
		case msg.GetNoteStart(&ch, &pitch, &vel):
			k := key{ch, pitch}
			open[k] = append(open[k], len(seq.Notes))
			seq.Notes = append(seq.Notes, m00sic.SequenceNote{
				Pitch:     int(pitch),
				Velocity:  int(vel),
				StartTime: seconds,
			})
		case msg.GetNoteEnd(&ch, &pitch):
			k := key{ch, pitch}
			if idx := open[k]; len(idx) > 0 {
				seq.Notes[idx[0]].EndTime = seconds
				open[k] = idx[1:]
			}
		}
	}
	for _, idx := range open {
		for _, i := range idx {
			seq.Notes[i].EndTime = seconds
		}
	}
	// drop notes that never sounded, e.g. an on and off on the same tick
	notes := seq.Notes[:0]
	for _, n := range seq.Notes {
		if n.EndTime > n.StartTime {
			notes = append(notes, n)
		}
	}
	seq.Notes = notes
	if seq.Tempo == 0 {
		seq.Tempo = m00sic.DefaultTempo
	}
	seq.TotalTime = seconds
	seq.Sort()
	return seq, nil
}

// ReadFile reads the named MIDI file.
func ReadFile(path string) (m00sic.NoteSequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return m00sic.NoteSequence{}, fmt.Errorf("could not open %v: %w", path, err)
	}
	defer f.Close()
	seq, err := Read(f)
	if err != nil {
		return m00sic.NoteSequence{}, fmt.Errorf("%v: %w", path, err)
	}
	return seq, nil
}
