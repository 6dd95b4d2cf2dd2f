package storyboard

import "math"

// shortSourceWords is the lowest word-count bucket boundary. Documents at
// or below it may not carry enough material for a full scene target.
const shortSourceWords = 350

// CalcSpec maps document size to scene and quiz targets. Word-count
// buckets ≤350/≤650/≤950/>950 yield 3/4/5/6 scenes; the quiz target is
// round(scenes × 1.2) clamped to [3, 6].
func CalcSpec(wordCount int) GenerationSpec {
	scenes := 6
	switch {
	case wordCount <= shortSourceWords:
		scenes = 3
	case wordCount <= 650:
		scenes = 4
	case wordCount <= 950:
		scenes = 5
	}
	return GenerationSpec{
		TargetSceneCount: scenes,
		TargetQuizCount:  quizTargetForScenes(scenes),
		WordCount:        wordCount,
	}
}

func quizTargetForScenes(scenes int) int {
	quiz := int(math.Round(float64(scenes) * 1.2))
	if quiz < 3 {
		quiz = 3
	}
	if quiz > 6 {
		quiz = 6
	}
	return quiz
}

// ShortSource reports whether the document sits in the lowest word-count
// bucket, where a scene shortfall from the provider is acceptable.
func (s GenerationSpec) ShortSource() bool {
	return s.WordCount <= shortSourceWords
}

// CapScenes applies a deployment-level scene ceiling, recomputing the quiz
// target for the reduced scene count.
func (s GenerationSpec) CapScenes(max int) GenerationSpec {
	if max <= 0 || s.TargetSceneCount <= max {
		return s
	}
	s.TargetSceneCount = max
	s.TargetQuizCount = quizTargetForScenes(max)
	return s
}
