package bot

// User-facing texts. The audience reads Uzbek.
const (
	msgWelcome        = "Assalomu alaykum! Botdan foydalanish uchun telefon raqamingizni yuboring."
	msgRegistered     = "Rahmat! Tizimga kirdingiz. Quyidagi tugmani bosing:"
	msgRegisterFailed = "Baza bilan xatolik bo'ldi. Iltimos, /start bosib qayta urinib ko'ring."
	msgForeignContact = "Iltimos, o'zingizning telefon raqamingizni yuboring."
	msgNotRegistered  = "Avval /start bosib ro'yxatdan o'ting."
	msgBalance        = "💰 Balansingiz: <b>%s</b> so'm"
	msgMenuEmpty      = "Bugun menyu hali qo'shilmagan."
	msgMenuHeader     = "🍽 <b>Bugungi menyu</b>"
	msgMenuClosed     = "⏰ Buyurtma vaqti tugagan (10:10)."
	msgMenuOpen       = "Buyurtma 10:10 gacha qabul qilinadi."
	msgUnknownCommand = "Noma'lum buyruq. /help bosing."
	msgHelp           = `<b>Buyruqlar:</b>
/start - ro'yxatdan o'tish
/menu - bugungi menyu
/balance - balansni ko'rish
/help - yordam`

	btnShareContact = "📲 Telefon raqamni yuborish"
	btnOrder        = "🍴 Ovqat Buyurtma Qilish"

	errIDRequired   = "ID required"
	errBadRequest   = "Noto'g'ri so'rov"
	errUserNotFound = "User topilmadi"
	errDeadline     = "Buyurtma vaqti tugagan (10:10)!"
	errNotFound     = "Ma'lumot topilmadi"
	errUnavailable  = "Bu taom bugun mavjud emas"
	errInsufficient = "Balans yetarli emas!"
	errForbidden    = "Huquq yoq"
	errBossOnly     = "Faqat Boss qila oladi"
	errInvalid      = "Ma'lumotlar noto'g'ri"
	errInternal     = "Serverda xatolik"
	errRateLimited  = "Juda ko'p so'rov, birozdan keyin urinib ko'ring"
)
