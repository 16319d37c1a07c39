package shield

var disposableDomains = []string{
	"10minutemail.com",
	"20minutemail.com",
	"33mail.com",
	"discard.email",
	"dispostable.com",
	"emailondeck.com",
	"fakeinbox.com",
	"getairmail.com",
	"getnada.com",
	"guerrillamail.com",
	"guerrillamail.net",
	"guerrillamailblock.com",
	"harakirimail.com",
	"incognitomail.org",
	"jetable.org",
	"mailcatch.com",
	"maildrop.cc",
	"mailinator.com",
	"mailnesia.com",
	"mintemail.com",
	"mohmal.com",
	"mytemp.email",
	"sharklasers.com",
	"spamgourmet.com",
	"temp-mail.org",
	"tempail.com",
	"tempmail.dev",
	"tempmailo.com",
	"tempr.email",
	"throwawaymail.com",
	"trashmail.com",
	"yopmail.com",
}

var freeDomains = []string{
	"aol.com",
	"bol.com.br",
	"gmail.com",
	"gmx.com",
	"googlemail.com",
	"hotmail.com",
	"icloud.com",
	"live.com",
	"mail.com",
	"me.com",
	"msn.com",
	"outlook.com",
	"proton.me",
	"protonmail.com",
	"uol.com.br",
	"yahoo.com",
	"yahoo.com.br",
	"zoho.com",
}
