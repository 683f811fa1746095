// Package generation defines the boundary between the application and
// external language-model providers. Completer covers text generation and
// SpeechSynthesizer covers text-to-speech; platform packages (gemini, openai)
// implement them and the ai package consumes them without knowing which
// vendor is behind the interface.
package generation
