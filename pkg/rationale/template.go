package rationale

import (
	"fmt"
	"strings"

	"github.com/lumen-ed/compass/pkg/skills"
)

// templateEvidenceLimit: the fallback narrative mentions at most the two
// strongest evidence items.
const templateEvidenceLimit = 2

type scoreBucket string

const (
	bucketEmerging   scoreBucket = "emerging"
	bucketDeveloping scoreBucket = "developing"
	bucketStrong     scoreBucket = "strong"
)

// bucketFor maps a fused score to its reporting band: below 0.4 emerging,
// 0.4 through 0.7 developing, above 0.7 strong.
func bucketFor(score float64) scoreBucket {
	switch {
	case score < 0.4:
		return bucketEmerging
	case score <= 0.7:
		return bucketDeveloping
	default:
		return bucketStrong
	}
}

var opener = map[scoreBucket]string{
	bucketEmerging:   "Your %s is just getting started, and that means there is real room to grow.",
	bucketDeveloping: "Your %s is coming along steadily, and you are building real momentum.",
	bucketStrong:     "Your %s is a genuine strength you can be proud of.",
}

var closer = map[scoreBucket]string{
	bucketEmerging:   "Small steps count, and every one of them builds the skill.",
	bucketDeveloping: "Keep practicing and the progress will keep coming.",
	bucketStrong:     "Keep it up and look for new chances to stretch it further.",
}

var sourceSentence = map[skills.Source]string{
	skills.SourceModel:              "This reflects patterns across your recent work.",
	skills.SourceLinguisticFeatures: "The way you express yourself in your work is part of this picture.",
	skills.SourceBehavioralFeatures: "How you move through tasks and activities is part of this picture.",
	skills.SourceTeacherObservation: "Your teacher has seen this in class.",
	skills.SourcePeerFeedback:       "Your classmates have noticed it too.",
}

// templateRationale is the deterministic fallback: the same shape as the LLM
// output, built from the skill, the score bucket, and the two strongest
// evidence items. It performs no I/O and never fails.
func templateRationale(a *skills.FusedAssessment, ranked []skills.Evidence) *skills.Rationale {
	label := skillLabel(a.Skill)
	bucket := bucketFor(a.FusedScore)

	var b strings.Builder
	fmt.Fprintf(&b, opener[bucket], label)
	for _, sentence := range evidenceSentences(ranked) {
		b.WriteByte(' ')
		b.WriteString(sentence)
	}
	b.WriteByte(' ')
	b.WriteString(closer[bucket])

	return &skills.Rationale{
		Narrative:         trimNarrative(b.String()),
		Strengths:         templateStrengths(label, bucket),
		GrowthSuggestions: templateSuggestions(label, bucket),
		Generator:         skills.GeneratorTemplate,
		TokensConsumed:    0,
	}
}

// evidenceSentences renders the top evidence items, one sentence per source;
// consecutive items from the same source collapse into one mention.
func evidenceSentences(ranked []skills.Evidence) []string {
	top := ranked
	if len(top) > templateEvidenceLimit {
		top = top[:templateEvidenceLimit]
	}
	sentences := make([]string, 0, len(top))
	var last skills.Source
	for _, ev := range top {
		if ev.Source == last {
			continue
		}
		last = ev.Source
		if s, ok := sourceSentence[ev.Source]; ok {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func templateStrengths(label string, bucket scoreBucket) []string {
	switch bucket {
	case bucketEmerging:
		return []string{"willingness to keep trying", "openness to support"}
	case bucketDeveloping:
		return []string{fmt.Sprintf("steady progress in %s", label), "consistent effort"}
	default:
		return []string{fmt.Sprintf("dependable %s", label), "positive example for classmates"}
	}
}

func templateSuggestions(label string, bucket scoreBucket) []string {
	switch bucket {
	case bucketEmerging:
		return []string{
			fmt.Sprintf("practice %s in one small moment each day", label),
			"ask a teacher for one strategy to try",
		}
	case bucketDeveloping:
		return []string{
			fmt.Sprintf("set one small %s goal this week", label),
			"notice what works and do it again",
		}
	default:
		return []string{
			fmt.Sprintf("use your %s in new situations", label),
			"help a classmate build the same skill",
		}
	}
}
