package messaging

// User-facing texts sent by the dispatcher.
const (
	WelcomeIntro = "Thanks for adding us! We help teams find the right first step with AI and DX."
	HelpIntro    = "Here is what I can do for you."

	PolishPrompt        = "Send the text you want polished. I will reply with a cleaner version."
	RiskCheckPrompt     = "Send the text you want checked. I will point out anything risky before you send it."
	ToolUnavailableText = "Sorry, this tool is not available right now. Please try again later."
	ToolFailureText     = "Sorry, something went wrong while processing your text. Please try again later."
	ToolCancelledText   = "OK, cancelled. Send polish or risk check whenever you need it."

	CommunityFormat = "Join our community here:\n%s"

	LinkMembershipPrompt = "Send the email address you registered with, and I will link it to this account."
	EmailConfirmFormat   = "Link this account to %s?"
	EmailLinkedFormat    = "Done! This account is now linked to %s."
	EmailDeclinedText    = "OK, nothing was linked."
	EmailLinkFailedText  = "Sorry, we could not link your membership right now. Please try again later."
	EmailRepromptFormat  = "Please answer yes or no. Link this account to %s?"

	ConfirmYesLabel = "Yes"
	ConfirmNoLabel  = "No"
)
