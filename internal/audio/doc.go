// Package audio provides the sample sources for the control loop.
// Capture reads the default microphone through miniaudio, and FileSource
// replays a WAV, OGG or MP3 recording decoded with beep. Record writes
// captured blocks to a WAV file for later replay.
package audio
