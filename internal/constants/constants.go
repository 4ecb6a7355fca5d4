package constants

const USER_AGENT = "pitwall/0.1.0 (+https://github.com/Amund211/pitwall)"
