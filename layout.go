package mwacal

// Chanblock is a contiguous set of unflagged fine channels averaged (or
// not) into one solution bin. ChanblockIndex is the absolute index into
// ObsContext.ChannelFreqsHz of the block's first channel; UnflaggedIndex is
// the dense index among unflagged chanblocks only.
type Chanblock struct {
	ChanblockIndex  int
	UnflaggedIndex  int
	FineChanIndices []int
	CentreFreqHz    float64
}

// Timeblock is a contiguous set of timesteps treated as one solution bin,
// carrying its timestep index range and the timestamps it covers.
// Coalesced marks the synthetic "all timesteps as one" timeblock solved
// first to seed per-timeblock solutions.
type Timeblock struct {
	FirstTimestepIdx int
	LastTimestepIdx  int
	TimestampsGPS    []float64
	Coalesced        bool
}

// FirstTimestampGPS, LastTimestampGPS and AverageTimestampGPS are the
// per-timeblock timestamp summaries attached to persisted solutions
// metadata.
func (tb Timeblock) FirstTimestampGPS() float64 {
	return tb.TimestampsGPS[0]
}

func (tb Timeblock) LastTimestampGPS() float64 {
	return tb.TimestampsGPS[len(tb.TimestampsGPS)-1]
}

func (tb Timeblock) AverageTimestampGPS() float64 {
	var sum float64
	for _, t := range tb.TimestampsGPS {
		sum += t
	}
	return sum / float64(len(tb.TimestampsGPS))
}

// BuildChanblocks partitions the unflagged fine-channel indices of an
// observation into chanblocks of width freqAverage fine channels each
// (the --freq-average setting), in ascending order. A final partial group
// is kept as a narrower chanblock rather than dropped.
func BuildChanblocks(unflaggedFineChanIndices []int, channelFreqsHz []float64, freqAverage int) []Chanblock {
	if freqAverage < 1 {
		freqAverage = 1
	}
	var out []Chanblock
	for start := 0; start < len(unflaggedFineChanIndices); start += freqAverage {
		end := start + freqAverage
		if end > len(unflaggedFineChanIndices) {
			end = len(unflaggedFineChanIndices)
		}
		group := unflaggedFineChanIndices[start:end]
		var sum float64
		for _, idx := range group {
			sum += channelFreqsHz[idx]
		}
		out = append(out, Chanblock{
			ChanblockIndex:  group[0],
			UnflaggedIndex:  len(out),
			FineChanIndices: append([]int{}, group...),
			CentreFreqHz:    sum / float64(len(group)),
		})
	}
	return out
}

// BuildTimeblocks partitions timestepsGPS (already ordered ascending) into
// timeblocks of width timeAverage timesteps each (the --time-average
// setting). It never returns the coalesced sentinel; callers that want the
// coalesced "all timesteps as one" solve should prepend
// CoalescedTimeblock's result.
func BuildTimeblocks(timestepsGPS []float64, timeAverage int) []Timeblock {
	if timeAverage < 1 {
		timeAverage = 1
	}
	var out []Timeblock
	for start := 0; start < len(timestepsGPS); start += timeAverage {
		end := start + timeAverage
		if end > len(timestepsGPS) {
			end = len(timestepsGPS)
		}
		out = append(out, Timeblock{
			FirstTimestepIdx: start,
			LastTimestepIdx:  end - 1,
			TimestampsGPS:    append([]float64{}, timestepsGPS[start:end]...),
		})
	}
	return out
}

// CoalescedTimeblock returns the synthetic timeblock spanning every
// timestep, used to seed per-timeblock solutions.
func CoalescedTimeblock(timestepsGPS []float64) Timeblock {
	return Timeblock{
		FirstTimestepIdx: 0,
		LastTimestepIdx:  len(timestepsGPS) - 1,
		TimestampsGPS:    append([]float64{}, timestepsGPS...),
		Coalesced:        true,
	}
}
