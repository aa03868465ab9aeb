package patch

import (
	"fmt"
	"strconv"

	"github.com/phobologic/pd4web/internal/model"
)

var midiObjects = map[string]struct{}{
	"notein": {}, "ctlin": {}, "bendin": {}, "pgmin": {}, "touchin": {},
	"polytouchin": {}, "midiin": {}, "midirealtimein": {}, "sysexin": {},
	"noteout": {}, "ctlout": {}, "bendout": {}, "pgmout": {}, "touchout": {},
	"polytouchout": {}, "midiout": {},
}

// guiReceiverSlots lists, per GUI class, the token indexes holding send or
// receive symbols that get a generated name when left "empty".
var guiReceiverSlots = map[string][]int{
	"vu":  {7},
	"vsl": {11, 12},
}

// sideEffects updates project-wide settings implied by a few vanilla objects.
func (s *Session) sideEffects(line *model.PatchLine) {
	name := line.Tokens[4]

	switch name {
	case "dac~":
		if n := channelCount(line.Tokens); n > s.outChannels {
			s.outChannels = n
		}
	case "adc~":
		if n := channelCount(line.Tokens); n > s.inChannels {
			s.inChannels = n
		}
	}

	if _, ok := midiObjects[name]; ok && !s.midi {
		log.Infof("MIDI enabled by %s", name)
		s.midi = true
	}

	if s.opts.GUI {
		s.nameReceivers(line)
	}
}

// channelCount returns the channels a dac~ or adc~ box needs: the larger of
// the number of channel arguments and the highest channel listed.
func channelCount(tokens []string) int {
	count, highest := 0, 0
	for _, tok := range tokens[5:] {
		n, err := strconv.Atoi(tok)
		if err != nil {
			break
		}
		count++
		if n > highest {
			highest = n
		}
	}
	return max(count, highest)
}

func (s *Session) nameReceivers(line *model.PatchLine) {
	slots, ok := guiReceiverSlots[line.Tokens[4]]
	if !ok {
		return
	}
	for _, i := range slots {
		if i >= len(line.Tokens) || line.Tokens[i] != "empty" {
			continue
		}
		s.guiCounter++
		recv := fmt.Sprintf("%s_%d", s.opts.GUIPrefix, s.guiCounter)
		line.Tokens[i] = recv
		line.UIReceiver = true
		s.guiReceivers = append(s.guiReceivers, recv)
	}
}
