package context

// DEFAULT_SYSTEM_PROMPT opens every prompt unless the settings override it.
const DEFAULT_SYSTEM_PROMPT = "You are SITA, a professional, warm, and intelligent AI partner."

// DEFAULT_WINDOW_SIZE is how many prior turns are sent with each request.
const DEFAULT_WINDOW_SIZE = 6
