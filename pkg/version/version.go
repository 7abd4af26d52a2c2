package version

// Version is the current topicspread version.
const Version = "0.1.0"
