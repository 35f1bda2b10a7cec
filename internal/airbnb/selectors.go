package airbnb

// Selector tables for the host inbox UI. Airbnb reshuffles its DOM
// regularly, so every lookup tries a list of selectors in order: current
// markup first, older fallbacks after.

var threadListSelectors = []string{
	`[data-testid="inbox_thread_list"] [data-testid^="inbox-thread-"]`,
	`[data-testid="threads-list"] a[href*="/hosting/inbox/"]`,
	`div[role="listitem"] a[href*="/hosting/inbox/"]`,
}

var messageRowSelectors = []string{
	`[data-testid="messaging-thread"] [data-testid^="message-"]`,
	`[data-section-id="MESSAGES"] [role="row"]`,
	`div[id^="message_"]`,
}

var composerSelectors = []string{
	`[data-testid="messaging-composebar-text-area"]`,
	`textarea[placeholder*="message"]`,
	`div[contenteditable="true"][role="textbox"]`,
}

var sendButtonSelectors = []string{
	`[data-testid="messaging-composebar-send-button"]`,
	`button[aria-label="Send"]`,
	`button[type="submit"]`,
}

var captchaSelectors = []string{
	`iframe[src*="captcha"]`,
	`iframe[title*="challenge"]`,
	`#px-captcha`,
	`form[action*="captcha"]`,
}

// loginMarkers in the current URL mean the saved session no longer
// authenticates
var loginMarkers = []string{
	"/login",
	"/authenticate",
	"/signup_login",
}
