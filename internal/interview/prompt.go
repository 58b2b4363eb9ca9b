package interview

import (
	"fmt"
	"strings"

	"github.com/kalambet/elicit/internal/storage"
)

const operationSelectionPrompt = `You are the scheduler of a semi-structured interview. Read the conversation about the current topic, focusing on the interviewee's latest reply, and decide what the interview should do next.

Operations:
- "maintain_current_topic": keep discussing the current topic.
- "end_current_topic": the current topic is exhausted; continue with the next planned topic.
- "switch_another_topic": the interviewee moved on to another topic from the list.
- "create_new_topic": the interviewee raised a subject that no listed topic covers.
- "refuse_current_topic": the interviewee declines to talk about the current topic.
- "refuse_current_topic_and_switch_another_topic": declines the current topic and asks for a listed one.
- "refuse_current_topic_and_create_new_topic": declines the current topic and raises an unlisted subject.

When several operations fit, prefer them in the order listed above.

Output ONLY a JSON object, no prose or markdown:
{"best_operation": "<operation>", "confidence_scores": [{"operation": "<operation>", "score": <0..1>}, ...]}
Give a score for all seven operations.`

const dependencyPrompt = `You analyse the topics of an interview plan and find prerequisite relations between them. A topic A depends on topic B when B should be discussed before A can be covered well.

Output ONLY a JSON array, no prose or markdown:
[{"source": "<topic number of A>", "target": "<topic number of B>"}, ...]
Output [] when no topic depends on another.`

const affectedTopicsPrompt = `You track which interview topics the interviewee's latest reply provides information for. The reply was given while discussing the current topic but may touch other topics too.

Output ONLY a JSON array of topic numbers taken from the topic list, no prose or markdown, e.g. ["topic-1-2", "topic-3-1"].`

const slotFillingPrompt = `You extract facts from an interview into slots of a target topic. Use only information stated in the latest round of the conversation; do not infer or speculate. Update a slot when the reply gives a new or more precise value, create a new slot when relevant information fits no existing slot, and leave everything else out.

Output ONLY a JSON array, no prose or markdown:
[{"slot_number": "<existing slot number, or empty for a new slot>", "slot_key": "<short attribute name>", "slot_value": "<extracted value>"}, ...]
Output [] when the reply holds nothing for this topic.`

const prefillPrompt = `You pre-fill an interview plan from the written requirements the client supplied before the interview. For every listed slot the requirements answer explicitly, give its value. Do not guess, do not invent slots, and leave out slots the requirements do not cover.

Output ONLY a JSON array, no prose or markdown:
[{"topic_number": "<topic number>", "slot_number": "<slot number of that topic>", "slot_value": "<value>"}, ...]
Output [] when the requirements answer no slot.`

const topicSelectionPrompt = `The interviewee wants to talk about a different topic. Pick the listed topic that best matches the latest reply. It must not be the current topic.

Output ONLY a JSON object, no prose or markdown:
{"topic_number": "<topic number from the list>"}`

const topicGenerationPrompt = `The interviewee raised a subject that no existing topic covers. Describe a new interview topic for it within the given section, different from every listed topic, and design a few slots that capture the information needed about it. Slot keys are short attribute names, most important first.

Output ONLY a JSON object, no prose or markdown:
{"topic_content": "<one sentence topic description>", "slots": [{"slot_key": "<attribute name>"}, ...]}`

const questionPrompt = `You are a friendly, professional interviewer gathering requirements. Write the interviewer's next message: at most three sentences ending with exactly one question. Follow the strategy instruction. If a scheduling note is present, weave it in naturally, e.g. as a short transition or clarification. Do not repeat questions that were already answered.

Output only the message text.`

func topicLine(t storage.Topic) string {
	return fmt.Sprintf("%s: %s", t.Number, t.Content)
}

func topicList(topics []storage.Topic) string {
	var sb strings.Builder
	for _, t := range topics {
		fmt.Fprintf(&sb, "- %s (section %s, %s)\n", topicLine(t), t.SectionNumber, t.Status)
	}
	return sb.String()
}

func slotList(slots []storage.Slot) string {
	if len(slots) == 0 {
		return "(no slots)\n"
	}
	var sb strings.Builder
	for _, s := range slots {
		value := "(empty)"
		if s.Filled() {
			value = *s.Value
		}
		fmt.Fprintf(&sb, "- %s %s = %s\n", s.Number, s.Key, value)
	}
	return sb.String()
}

func operationQuery(current storage.Topic, transcript Transcript, topics []storage.Topic) string {
	return fmt.Sprintf("[Current topic]\n%s\n\n[Conversation]\n%s\n\n[Topic list]\n%s",
		topicLine(current), transcript.render(), topicList(topics))
}

func dependencyQuery(topics []storage.Topic) string {
	return fmt.Sprintf("[Topic list]\n%s", topicList(topics))
}

func affectedTopicsQuery(current storage.Topic, transcript Transcript, topics []storage.Topic) string {
	return fmt.Sprintf("[Current topic]\n%s\n\n[Conversation]\n%s\n\n[Topic list]\n%s",
		topicLine(current), transcript.render(), topicList(topics))
}

func slotFillingQuery(target storage.Topic, slots []storage.Slot, transcript Transcript) string {
	return fmt.Sprintf("[Target topic]\n%s\n\n[Slots]\n%s\n[Conversation]\n%s",
		topicLine(target), slotList(slots), transcript.render())
}

func topicSelectionQuery(current storage.Topic, transcript Transcript, topics []storage.Topic) string {
	return fmt.Sprintf("[Current topic]\n%s\n\n[Conversation]\n%s\n\n[Topic list]\n%s",
		topicLine(current), transcript.render(), topicList(topics))
}

func topicGenerationQuery(current storage.Topic, section storage.Section, transcript Transcript, topics []storage.Topic) string {
	return fmt.Sprintf("[Section]\n%s: %s\n\n[Current topic]\n%s\n\n[Conversation]\n%s\n\n[Topic list]\n%s",
		section.Number, section.Content, topicLine(current), transcript.render(), topicList(topics))
}

func prefillQuery(requirements string, topics []storage.Topic, slots map[int64][]storage.Slot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[Requirements]\n%s\n\n[Topics and slots]\n", strings.TrimSpace(requirements))
	for _, t := range topics {
		fmt.Fprintf(&sb, "%s\n%s\n", topicLine(t), slotList(slots[t.ID]))
	}
	return sb.String()
}
