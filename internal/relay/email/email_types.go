package email

type EmailInfo struct {
	FromName  string // Name of the sender
	FromEmail string // Email of the sender
	ToName    string // Name of the recipient
	ToEmail   string // Email of the recipient
	Subject   string // Subject of the email
	TextBody  string // Plain text body
	HTMLBody  string // HTML body of the email
}

func (e *EmailInfo) Validate() error {
	if e.FromEmail == "" {
		return ErrInvalidMailSender
	}
	if e.ToEmail == "" {
		return ErrInvalidMailRecipient
	}
	if e.FromName == "" {
		e.FromName = e.FromEmail
	}
	if e.ToName == "" {
		e.ToName = e.ToEmail
	}
	return nil
}

// DevicePairedEmail tells the account owner a new device received the sync key.
func DevicePairedEmail(to, deviceName, issuerName string) *EmailInfo {
	if deviceName == "" {
		deviceName = "A new device"
	}
	if issuerName == "" {
		issuerName = "one of your devices"
	}
	return &EmailInfo{
		ToEmail: to,
		Subject: "New device paired with LedgerSync",
		TextBody: deviceName + " was paired with your LedgerSync account by " + issuerName + ".\n\n" +
			"If this was not you, revoke the device from any of your other devices and reset sync.\n",
	}
}
