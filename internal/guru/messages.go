package guru

// Reply and notice texts, carried over from the original Crowd Guru.
const (
	MsgPonder          = "Hmm. Let me think on that a bit."
	MsgTellMe          = "While I'm thinking, perhaps you can answer me this: %s"
	MsgSomeoneAnswered = "We seek those who are wise and fast. One out of two is not enough. Another has answered my question."
	MsgAnswerIntro     = "You asked me: %s"
	MsgAnswer          = "I have thought long and hard, and concluded: %s"
	MsgWait            = "Please! One question at a time! You can ask me another once you have an answer to your current question."
	MsgThanks          = "Thank you for your wisdom."
	MsgTellMeThanks    = MsgThanks + " I'm still thinking about your question."
	MsgEmptyQueue      = "Sorry, I don't have anything to ask you at the moment."
	MsgHelp            = "I am the amazing Crowd Guru. Ask me a question by typing '/tellme the meaning of life', and I will answer you forthwith!"
)
