package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/DrMneff/digital-unlock-oasis/internal/services"
)

const (
	msgGeneric        = "حدث خطأ ما. يرجى المحاولة مرة أخرى."
	msgNotFound       = "الصفحة غير موجودة"
	msgAccessDenied   = "غير مصرح لك بالوصول إلى هذه الصفحة."
	msgCSRF           = "فشل التحقق الأمني. يرجى تحديث الصفحة والمحاولة مرة أخرى."
	msgTooMany        = "محاولات كثيرة. يرجى المحاولة لاحقاً."
	msgBadLogin       = "البريد الإلكتروني أو كلمة المرور غير صحيحة."
	msgNotConfirmed   = "يرجى تأكيد بريدك الإلكتروني قبل تسجيل الدخول."
	msgSignupDone     = "تم إنشاء حسابك. تحقق من بريدك الإلكتروني لتأكيد الحساب."
	msgConfirmed      = "تم تأكيد بريدك الإلكتروني. يمكنك تسجيل الدخول الآن."
	msgOrderSaved     = "تم تحديث الطلب بنجاح."
	msgOrderDeleted   = "تم حذف الطلب."
	msgProductSaved   = "تم حفظ المنتج."
	msgProductDeleted = "تم حذف المنتج."
	msgStockAdded     = "تمت إضافة المخزون."
	msgStockDeleted   = "تم حذف عنصر المخزون."
	msgUserDeleted    = "تم حذف المستخدم."
	msgInquirySent    = "تم استلام طلبك! سنتواصل معك قريباً."
)

// errorStatus maps a service error to an HTTP status and a message safe to
// show the user.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrInvalidTransition):
		return fiber.StatusConflict, "لا يمكن نقل الطلب من حالته الحالية إلى الحالة المطلوبة."
	case errors.Is(err, services.ErrNoStockAvailable):
		return fiber.StatusConflict, "لا يوجد مخزون متاح لهذا المنتج. يرجى إضافة مخزون أولاً."
	case errors.Is(err, services.ErrStockSelectionRequired):
		return fiber.StatusBadRequest, "يرجى اختيار عنصر من المخزون لتسليمه للعميل."
	case errors.Is(err, services.ErrStockUnavailable):
		return fiber.StatusConflict, "عنصر المخزون المحدد لم يعد متاحاً."
	case errors.Is(err, services.ErrOrderConflict):
		return fiber.StatusConflict, "تم تعديل الطلب في مكان آخر. يرجى إعادة تحميل الصفحة."
	case errors.Is(err, services.ErrOrderHoldsStock):
		return fiber.StatusConflict, "هذا الطلب مرتبط بعنصر مخزون مسلّم. اختر إعادة العنصر إلى المخزون لحذفه."
	case errors.Is(err, services.ErrOrderNotFound):
		return fiber.StatusNotFound, "الطلب غير موجود."
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound, "العنصر المطلوب غير موجود."
	case errors.Is(err, services.ErrProductInUse):
		return fiber.StatusConflict, "لا يمكن حذف منتج مرتبط بطلبات أو مخزون."
	case errors.Is(err, services.ErrEmailTaken):
		return fiber.StatusConflict, "البريد الإلكتروني مسجل مسبقاً."
	case errors.Is(err, services.ErrInvalidInput):
		return fiber.StatusBadRequest, "البيانات المدخلة غير صالحة. يرجى مراجعة الحقول."
	default:
		return fiber.StatusInternalServerError, msgGeneric
	}
}
