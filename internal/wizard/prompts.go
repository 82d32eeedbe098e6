package wizard

import (
	"fmt"
	"strings"

	"tg_resumo_bot/internal/domain"
)

// User-facing texts of the configuration dialogue. All of them are part of
// the bot's conversational contract; changing wording here changes what
// users see.
const (
	replyCancelled = "❌ Configuração cancelada."
	replyExpired   = "A sessão de configuração expirou. Por favor, inicie novamente com #ferramentaresumo"

	replyTransitionError = "❌ Ocorreu um erro ao processar sua resposta. Por favor, tente novamente.\n\n" +
		"Digite \"cancelar\" para cancelar a configuração."

	promptGroupName = "Qual é o nome exato do grupo que você quer configurar?"

	promptConfigType = "Como você deseja configurar o resumo?\n\n" +
		"1️⃣ - Usar configurações padrão\n" +
		"2️⃣ - Personalizar configurações\n\n" +
		"Responda com 1 ou 2."

	promptInterval = "De quantas em quantas horas você quer que eu faça o resumo?\n" +
		"Responda apenas com o número de horas (ex: 3)."

	promptQuietStart = "Qual o horário de início do período silencioso? (quando não deve enviar resumos)\n" +
		"Responda no formato HH:MM (ex: 22:00)."

	promptQuietEnd = "Qual o horário de fim do período silencioso?\n" +
		"Responda no formato HH:MM (ex: 07:00)."

	promptAutoDeleteChoice = "Você deseja que os resumos sejam automaticamente excluídos após um determinado tempo?\n\n" +
		"Responda com *sim* ou *não*."

	promptGroupInfo = "Descreva os objetivos e características do grupo para eu gerar um prompt personalizado.\n" +
		"Por exemplo: \"Grupo de estudos de medicina focado em compartilhar artigos e discutir casos clínicos\""

	invalidGroupNamePrefix = "❌ Por favor, envie apenas o nome do grupo, sem prefixos de comando (#, @).\n\n" +
		"Digite \"cancelar\" para cancelar a configuração."

	invalidConfigType = "❌ Por favor, responda apenas com 1 (configurações padrão) ou 2 (personalizar).\n\n" +
		"Digite \"voltar\" para mudar o grupo ou \"cancelar\" para cancelar."

	invalidEditOption = "❌ Por favor, escolha uma opção válida (1-5)."

	invalidInterval = "❌ Por favor, envie um número válido entre 1 e 24.\n\n" +
		"Digite \"voltar\" para mudar a configuração ou \"cancelar\" para cancelar."

	invalidQuietStart = "❌ Por favor, envie um horário válido no formato HH:MM (ex: 22:00).\n\n" +
		"Digite \"voltar\" para mudar o intervalo ou \"cancelar\" para cancelar."

	invalidQuietEnd = "❌ Por favor, envie um horário válido no formato HH:MM (ex: 07:00).\n\n" +
		"Digite \"voltar\" para mudar o horário de início ou \"cancelar\" para cancelar."

	invalidAutoDeleteChoice = "❌ Por favor, responda apenas com *sim* ou *não*.\n\n" +
		"Digite \"voltar\" para mudar o horário silencioso ou \"cancelar\" para cancelar."

	invalidDeleteAfter = "❌ Por favor, envie um número válido de minutos.\n\n" +
		"Digite \"voltar\" para mudar sua escolha ou \"cancelar\" para cancelar."

	invalidPromptApproval = "❌ Por favor, responda apenas com 1 (usar prompt sugerido) ou 2 (criar próprio).\n\n" +
		"Digite \"voltar\" para mudar a descrição do grupo ou \"cancelar\" para cancelar."

	invalidConfirmation = "❌ Por favor, responda apenas com *sim* ou *não*.\n\n" +
		"Digite \"voltar\" para revisar as configurações ou \"cancelar\" para cancelar."

	askInterval = "Digite o intervalo desejado entre os resumos (em horas, entre 1 e 24):\n\n" +
		"Digite \"voltar\" para mudar a configuração ou \"cancelar\" para cancelar."

	askQuietStart = promptQuietStart + "\n\n" +
		"Digite \"voltar\" para mudar o intervalo ou \"cancelar\" para cancelar."

	askQuietEnd = promptQuietEnd + "\n\n" +
		"Digite \"voltar\" para mudar o horário de início ou \"cancelar\" para cancelar."

	askAutoDeleteChoice = promptAutoDeleteChoice + "\n\n" +
		"Digite \"voltar\" para mudar o horário silencioso ou \"cancelar\" para cancelar."

	askDeleteAfter = "Digite após quantos minutos os resumos devem ser excluídos:\n\n" +
		"Digite \"voltar\" para mudar sua escolha ou \"cancelar\" para cancelar."

	askGroupInfoAfterChoice = promptGroupInfo + "\n\n" +
		"Digite \"voltar\" para mudar sua escolha ou \"cancelar\" para cancelar."

	askGroupInfoAfterDeleteAfter = promptGroupInfo + "\n\n" +
		"Digite \"voltar\" para mudar o tempo de auto-exclusão ou \"cancelar\" para cancelar."

	askCustomPrompt = "Digite o prompt personalizado que você quer usar para os resumos.\n\n" +
		"Digite \"voltar\" para usar o prompt sugerido ou \"cancelar\" para cancelar."

	askEditInterval = "Digite o novo intervalo em horas (1-24):\n\n" +
		"Digite \"voltar\" para retornar ao menu anterior ou \"cancelar\" para cancelar."

	askEditQuietStart = "Digite o novo horário de início do período silencioso (formato HH:MM, exemplo: 21:00):\n\n" +
		"Digite \"voltar\" para retornar ao menu anterior ou \"cancelar\" para cancelar."

	askEditGroupInfo = "Descreva o objetivo e contexto do grupo para gerar um novo prompt:\n\n" +
		"Digite \"voltar\" para retornar ao menu anterior ou \"cancelar\" para cancelar."

	replyToggleEnabled  = "✅ Grupo ativado com sucesso!"
	replyToggleDisabled = "✅ Grupo desativado com sucesso!"
	replyGroupDeleted   = "✅ Grupo excluído com sucesso!"
	replyDeleteAborted  = "❌ Exclusão cancelada."
	replySaved          = "✅ Configuração salva com sucesso! O resumo periódico está ativado para este grupo."

	backPreamble = "Ok, vamos voltar.\n\n"

	// generateTemplate is handed to the completion backend with the user's
	// group description to produce a tailored summary prompt.
	generateTemplate = "Crie um prompt de sistema para resumir as mensagens de um grupo com as seguintes características: %s. " +
		"O prompt deve instruir o modelo a produzir um resumo conciso em português, destacando os principais assuntos discutidos e decisões tomadas. " +
		"Responda apenas com o texto do prompt, sem explicações."
)

func startPrompt(existing []string) string {
	var b strings.Builder
	b.WriteString("🔧 Vamos configurar o resumo periódico!\n\n")

	if len(existing) > 0 {
		b.WriteString("*Grupos já configurados:*\n")
		for i, name := range existing {
			fmt.Fprintf(&b, "%d. %s\n", i+1, name)
		}
		b.WriteString("\nResponda com o número de um grupo para editá-lo, ou envie o nome exato de um novo grupo.\n\n")
	}

	b.WriteString(promptGroupName)
	b.WriteString("\n\nDigite \"cancelar\" a qualquer momento para sair.")

	return b.String()
}

func groupSelectedPrompt(groupName string) string {
	return fmt.Sprintf("✅ Grupo selecionado: \"%s\"\n\n", groupName) +
		promptConfigType + "\n\n" +
		"Digite \"voltar\" para selecionar outro grupo ou \"cancelar\" para cancelar a configuração."
}

func editMenuPrompt(groupName string, cfg domain.GroupSummary) string {
	status := "✅ Ativado"
	if !cfg.Enabled {
		status = "❌ Desativado"
	}

	return fmt.Sprintf("*Grupo selecionado:* %s\n\n", groupName) +
		"*Configurações atuais:*\n" +
		fmt.Sprintf("1. Status: %s\n", status) +
		fmt.Sprintf("2. Intervalo: %d horas\n", cfg.IntervalHours) +
		fmt.Sprintf("3. Período silencioso: %s até %s\n", cfg.QuietTime.Start, cfg.QuietTime.End) +
		fmt.Sprintf("4. Prompt:\n%s\n\n", cfg.Prompt) +
		"*Escolha uma opção para editar ou 5 para excluir o grupo.*\n\n" +
		"Responda com o número da opção desejada."
}

func deleteConfirmPrompt(groupName string) string {
	return fmt.Sprintf("⚠️ Tem certeza que deseja excluir a configuração do grupo \"%s\"?\n\n", groupName) +
		"Digite *sim* para confirmar ou *não* para cancelar."
}

func promptApprovalPrompt(generated string) string {
	return "Este é o prompt sugerido para o resumo:\n\n" +
		fmt.Sprintf("\"%s\"\n\n", generated) +
		"1️⃣ - Usar este prompt\n" +
		"2️⃣ - Criar meu próprio prompt\n\n" +
		"Responda com 1 ou 2.\n\n" +
		"Digite \"voltar\" para mudar a descrição do grupo ou \"cancelar\" para cancelar."
}

func autoDeleteText(deleteAfter *int) string {
	if deleteAfter == nil {
		return "Não"
	}
	return fmt.Sprintf("Sim, após %d minutos", *deleteAfter)
}

func defaultsSummaryPrompt(groupName string, defaults domain.GroupSummary) string {
	return "📋 *Resumo das configurações padrão:*\n\n" +
		fmt.Sprintf("• Grupo: %s\n", groupName) +
		fmt.Sprintf("• Intervalo: %d horas\n", defaults.IntervalHours) +
		fmt.Sprintf("• Horário silencioso: %s até %s\n", defaults.QuietTime.Start, defaults.QuietTime.End) +
		fmt.Sprintf("• Auto-exclusão: %s\n", autoDeleteText(defaults.DeleteAfter)) +
		fmt.Sprintf("• Prompt: \"%s\"\n\n", defaults.Prompt) +
		"Confirma estas configurações?\n" +
		"Responda com *sim* ou *não*.\n\n" +
		"Digite \"voltar\" para mudar a configuração ou \"cancelar\" para cancelar."
}

func approvalSummaryPrompt(groupName string, intervalHours int, quietStart, quietEnd, model, prompt string) string {
	return "📋 *Resumo das configurações:*\n\n" +
		fmt.Sprintf("• Grupo: %s\n", groupName) +
		fmt.Sprintf("• Intervalo: %d horas\n", intervalHours) +
		fmt.Sprintf("• Horário silencioso: %s até %s\n", quietStart, quietEnd) +
		fmt.Sprintf("• Modelo: %s\n", model) +
		fmt.Sprintf("• Prompt: \"%s\"\n\n", prompt) +
		"Confirma estas configurações?\n" +
		"Responda com *sim* ou *não*.\n\n" +
		"Digite \"voltar\" para mudar o prompt ou \"cancelar\" para cancelar."
}

func customSummaryPrompt(groupName string, intervalHours int, quietStart, quietEnd string, deleteAfter *int, prompt string) string {
	return "📋 *Resumo das configurações:*\n\n" +
		fmt.Sprintf("• Grupo: %s\n", groupName) +
		fmt.Sprintf("• Intervalo: %d horas\n", intervalHours) +
		fmt.Sprintf("• Horário silencioso: %s até %s\n", quietStart, quietEnd) +
		fmt.Sprintf("• Auto-exclusão: %s\n", autoDeleteText(deleteAfter)) +
		fmt.Sprintf("• Prompt: \"%s\"\n\n", prompt) +
		"Confirma estas configurações?\n" +
		"Responda com *sim* ou *não*.\n\n" +
		"Digite \"voltar\" para editar o prompt ou \"cancelar\" para cancelar."
}
