package controllers

import (
	"net/http"
	"net/url"

	"github.com/google/uuid"

	tabsvc "github.com/rjanssen/bartab-backend/internal/tabs"
	"github.com/rjanssen/bartab-backend/pkg/config"
	"github.com/rjanssen/bartab-backend/pkg/logger"
)

// PayReturn lands the guest's browser after the hosted checkout and sends it
// on to the tab page. It never mutates anything: settlement happens on the
// webhook path only, so a slow webhook just shows the tab still open.
func PayReturn(svc tabsvc.Service, checkout config.CheckoutConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		target := checkout.TabPageURL

		rawID := r.URL.Query().Get("tabId")
		tabID, err := uuid.Parse(rawID)
		if err != nil {
			if logg != nil {
				logg.Warn(ctx, "pay.return_without_tab")
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}

		if u, err := url.Parse(target); err == nil {
			q := u.Query()
			q.Set("tabId", tabID.String())
			u.RawQuery = q.Encode()
			target = u.String()
		}

		if svc != nil && logg != nil {
			ctx = logg.WithTabID(ctx, tabID.String())
			if tab, err := svc.GetTab(ctx, tabID); err == nil {
				ctx = logg.WithField(ctx, "tab_status", tab.Status.String())
				logg.Info(ctx, "pay.return")
			} else {
				logg.Warn(ctx, "pay.return_unknown_tab")
			}
		}

		http.Redirect(w, r, target, http.StatusSeeOther)
	}
}
