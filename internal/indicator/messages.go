package indicator

import "github.com/rbright/sauti/internal/locale"

type messages struct {
	listening string
	errorText string
}

func messagesFor(language string) messages {
	if language == locale.Kiswahili {
		return messages{
			listening: "Inasikiliza…",
			errorText: "Hitilafu ya utambuzi wa sauti",
		}
	}
	return messages{
		listening: "Listening…",
		errorText: "Speech recognition error",
	}
}
